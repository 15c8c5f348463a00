package grpcx

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "chat.v1.ChatQuery"

// ChatQueryServer read-only запросы к истории чатов.
type ChatQueryServer interface {
	GetPrivateMessages(context.Context, *GetPrivateMessagesRequest) (*MessagesPage, error)
	GetChatPartners(context.Context, *GetChatPartnersRequest) (*PartnersPage, error)
	GetUserRooms(context.Context, *GetUserRoomsRequest) (*RoomsPage, error)
	CountUnread(context.Context, *CountUnreadRequest) (*CountUnreadResponse, error)
	GetRoom(context.Context, *GetRoomRequest) (*RoomDetails, error)
}

var chatQueryDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatQueryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetPrivateMessages", ChatQueryServer.GetPrivateMessages),
		unary("GetChatPartners", ChatQueryServer.GetChatPartners),
		unary("GetUserRooms", ChatQueryServer.GetUserRooms),
		unary("CountUnread", ChatQueryServer.CountUnread),
		unary("GetRoom", ChatQueryServer.GetRoom),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chat/v1/chat_query.json",
}

func RegisterChatQueryServer(s grpc.ServiceRegistrar, srv ChatQueryServer) {
	s.RegisterService(&chatQueryDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary[Req, Resp any](method string, call func(ChatQueryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ChatQueryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ChatQueryServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Client типизированный клиент ChatQuery поверх JSON-кодека.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in *Req, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetPrivateMessages(ctx context.Context, in *GetPrivateMessagesRequest, opts ...grpc.CallOption) (*MessagesPage, error) {
	return invoke[GetPrivateMessagesRequest, MessagesPage](ctx, c.cc, "GetPrivateMessages", in, opts...)
}

func (c *Client) GetChatPartners(ctx context.Context, in *GetChatPartnersRequest, opts ...grpc.CallOption) (*PartnersPage, error) {
	return invoke[GetChatPartnersRequest, PartnersPage](ctx, c.cc, "GetChatPartners", in, opts...)
}

func (c *Client) GetUserRooms(ctx context.Context, in *GetUserRoomsRequest, opts ...grpc.CallOption) (*RoomsPage, error) {
	return invoke[GetUserRoomsRequest, RoomsPage](ctx, c.cc, "GetUserRooms", in, opts...)
}

func (c *Client) CountUnread(ctx context.Context, in *CountUnreadRequest, opts ...grpc.CallOption) (*CountUnreadResponse, error) {
	return invoke[CountUnreadRequest, CountUnreadResponse](ctx, c.cc, "CountUnread", in, opts...)
}

func (c *Client) GetRoom(ctx context.Context, in *GetRoomRequest, opts ...grpc.CallOption) (*RoomDetails, error) {
	return invoke[GetRoomRequest, RoomDetails](ctx, c.cc, "GetRoom", in, opts...)
}
