package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls numberhub.v1.Calculator over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) call(ctx context.Context, method string, in map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Evaluate calls Calculator.Evaluate.
func (c *Client) Evaluate(ctx context.Context, in map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Evaluate", in, opts...)
}

// DeleteRange calls Calculator.DeleteRange.
func (c *Client) DeleteRange(ctx context.Context, in map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "DeleteRange", in, opts...)
}

// DecomposeTime calls Calculator.DecomposeTime.
func (c *Client) DecomposeTime(ctx context.Context, in map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "DecomposeTime", in, opts...)
}

// Convert calls Calculator.Convert.
func (c *Client) Convert(ctx context.Context, in map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Convert", in, opts...)
}
