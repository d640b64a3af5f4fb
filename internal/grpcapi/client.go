package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is a thin typed wrapper over a connection to AccessService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *Client) CheckIn(ctx context.Context, memberID int64, qrCode string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "CheckIn", scanRequest(memberID, qrCode), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CheckOut(ctx context.Context, memberID int64, qrCode string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "CheckOut", scanRequest(memberID, qrCode), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) IsInside(ctx context.Context, memberID int64, opts ...grpc.CallOption) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.invoke(ctx, "IsInside", memberRequest(memberID), out, opts...); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *Client) CurrentlyInside(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "CurrentlyInside", &structpb.Struct{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) History(ctx context.Context, memberID int64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "History", memberRequest(memberID), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Report takes RFC3339 bounds.
func (c *Client) Report(ctx context.Context, start, end string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"start": structpb.NewStringValue(start),
		"end":   structpb.NewStringValue(end),
	}}
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Report", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Occupancy(ctx context.Context, opts ...grpc.CallOption) (int64, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.invoke(ctx, "Occupancy", &emptypb.Empty{}, out, opts...); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

func (c *Client) GenerateCode(ctx context.Context, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.invoke(ctx, "GenerateCode", &emptypb.Empty{}, out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

func memberRequest(memberID int64) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"member_id": structpb.NewNumberValue(float64(memberID)),
	}}
}

func scanRequest(memberID int64, qrCode string) *structpb.Struct {
	in := memberRequest(memberID)
	in.Fields["qr_code"] = structpb.NewStringValue(qrCode)
	return in
}
