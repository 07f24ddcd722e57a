// Frontline Perception System
// Copyright (C) 2020-2025 TurbineOne LLC
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

type unaryCall func(srv ControlServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) func(interface{}, context.Context, func(interface{}) error,
	grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error,
		interceptor grpc.UnaryServerInterceptor,
	) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		cs := srv.(ControlServer) //nolint:forcetypeassert // Registered with a ControlServer.

		if interceptor == nil {
			return call(cs, ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}

		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(cs, ctx, req.(*structpb.Struct)) //nolint:forcetypeassert // Decoded above.
		}

		return interceptor(ctx, in, info, handler)
	}
}

// ControlServiceDesc describes archive.v1.Control. Every method is unary and
// carries google.protobuf.Struct both ways.
var ControlServiceDesc = grpc.ServiceDesc{ //nolint:gochecknoglobals // Service descriptor.
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListCatalog",
			Handler:    unaryHandler("ListCatalog", ControlServer.ListCatalog),
		},
		{
			MethodName: "ListDetectors",
			Handler:    unaryHandler("ListDetectors", ControlServer.ListDetectors),
		},
		{
			MethodName: "StartDetector",
			Handler:    unaryHandler("StartDetector", ControlServer.StartDetector),
		},
		{
			MethodName: "StopDetector",
			Handler:    unaryHandler("StopDetector", ControlServer.StopDetector),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "archive/v1/control.proto",
}

// Client calls archive.v1.Control.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, req *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err //nolint:wrapcheck // Status errors go back as-is.
	}

	return out, nil
}

// ListCatalog calls ListCatalog.
func (c *Client) ListCatalog(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListCatalog", req, opts...)
}

// ListDetectors calls ListDetectors.
func (c *Client) ListDetectors(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListDetectors", req, opts...)
}

// StartDetector calls StartDetector.
func (c *Client) StartDetector(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "StartDetector", req, opts...)
}

// StopDetector calls StopDetector.
func (c *Client) StopDetector(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "StopDetector", req, opts...)
}
