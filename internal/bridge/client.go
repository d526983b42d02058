package bridge

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls HomeService on behalf of a host.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial connects to a HomeService at target without transport security.
// Calls carry the trace context of their ctx.
//
// Postcondition: The caller must Close the returned connection.
func Dial(target string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to %s: %w", target, err)
	}
	return NewClient(conn), conn, nil
}

// Execute forwards a player command.
func (c *Client) Execute(ctx context.Context, req ExecuteRequest, opts ...grpc.CallOption) (ExecuteResponse, error) {
	in, err := req.toStruct()
	if err != nil {
		return ExecuteResponse{}, fmt.Errorf("encoding request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, executeMethod, in, out, opts...); err != nil {
		return ExecuteResponse{}, err
	}
	resp, err := executeResponseFromStruct(out)
	if err != nil {
		return ExecuteResponse{}, fmt.Errorf("decoding response: %w", err)
	}
	return resp, nil
}

// Save asks the service to persist pending changes and returns the request id.
func (c *Client) Save(ctx context.Context, opts ...grpc.CallOption) (string, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, saveMethod, &structpb.Struct{}, out, opts...); err != nil {
		return "", err
	}
	return optionalString(out.GetFields(), fieldRequestID)
}
