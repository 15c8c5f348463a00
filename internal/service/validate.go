package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/go-playground/validator/v10"
)

const tagReceiverXorRoom = "receiver_xor_room"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// в ошибках поля называются так же, как в JSON
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(receiverXorRoom, SendMessageRequest{})
	return v
}

// receiverXorRoom у сообщения ровно один адресат: пользователь или комната.
func receiverXorRoom(sl validator.StructLevel) {
	req := sl.Current().Interface().(SendMessageRequest)
	if req.hasReceiver() == req.hasRoom() {
		sl.ReportError(req.ReceiverID, "receiverId", "ReceiverID", tagReceiverXorRoom, "")
		sl.ReportError(req.ChatRoomID, "chatRoomId", "ChatRoomID", tagReceiverXorRoom, "")
	}
}

// validateStruct переводит ошибки валидатора в *domain.ValidationError.
func validateStruct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	fields := make([]domain.FieldViolation, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, domain.FieldViolation{Field: fe.Field(), Message: describe(fe)})
	}
	return &domain.ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case tagReceiverXorRoom:
		return "exactly one of receiverId or chatRoomId must be set"
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}
