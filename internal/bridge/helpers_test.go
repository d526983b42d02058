package bridge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/simplehome/internal/bridge"
)

func invokeRaw(t *testing.T, conn *grpc.ClientConn, fields map[string]interface{}) error {
	t.Helper()
	in, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return conn.Invoke(context.Background(), "/"+bridge.ServiceName+"/Execute", in, new(structpb.Struct))
}
