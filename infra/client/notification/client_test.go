package notification

import (
	"context"
	"log/slog"
	"net"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

type call struct {
	method string
	body   map[string]any
}

// directoryServer answers every method of the notification service with reply.
type directoryServer struct {
	mu    sync.Mutex
	calls []call
	reply func(method string) (map[string]any, error)
}

func (s *directoryServer) handle(_ any, stream grpc.ServerStream) error {
	full, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "no method")
	}
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}

	method := path.Base(full)
	s.mu.Lock()
	s.calls = append(s.calls, call{method: method, body: req.AsMap()})
	s.mu.Unlock()

	body, err := s.reply(method)
	if err != nil {
		return err
	}
	resp, err := structpb.NewStruct(body)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return stream.SendMsg(resp)
}

func (s *directoryServer) hits() []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]call(nil), s.calls...)
}

func newDirectory(t *testing.T, reply func(method string) (map[string]any, error)) (*Client, *directoryServer) {
	t.Helper()

	srv := &directoryServer{reply: reply}
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	gs := grpc.NewServer(grpc.UnknownServiceHandler(srv.handle))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	c, err := New(lis.Addr().String(), 5*time.Second, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, srv
}

func TestClient_RequestShapes(t *testing.T) {
	const datetime = "2024-05-01T10:00:00Z"

	c, srv := newDirectory(t, func(method string) (map[string]any, error) {
		switch method {
		case methodGetGroups:
			return map[string]any{"groups": []any{"ops", "", "billing"}}, nil
		case methodAddMessage:
			return map[string]any{"id": "9007199254740993", "datetime": datetime}, nil
		case methodGetMessages:
			return map[string]any{
				"count": "9007199254740995",
				"notifications": []any{map[string]any{
					"id":       "9007199254740993",
					"channel":  "ops",
					"subject":  "deploy",
					"message":  "done",
					"datetime": datetime,
				}},
			}, nil
		}
		return map[string]any{}, nil
	})
	ctx := context.Background()
	const bigID = int64(9007199254740993)

	groups, err := c.GetGroups(ctx, bigID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ops", "billing"}, groups)

	require.NoError(t, c.AddSubscriber(ctx, bigID, "ops"))
	require.NoError(t, c.RemoveSubscriber(ctx, bigID, "ops"))
	require.NoError(t, c.AddGroup(ctx, model.Group{Name: "ops", AdminEmail: "root@example.com"}, "secret"))
	require.NoError(t, c.RemoveGroup(ctx, model.Group{Name: "ops", AdminEmail: "root@example.com"}))

	rec, err := c.AddMessage(ctx, "ops", "deploy", "done")
	require.NoError(t, err)
	assert.Equal(t, bigID, rec.ID)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), rec.Datetime)

	log, err := c.GetMessages(ctx, []string{"ops", "billing"}, 9007199254740990, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740995), log.Count)
	require.Len(t, log.Notifications, 1)
	assert.Equal(t, &model.NotificationMessage{
		ID:       bigID,
		Channel:  "ops",
		Subject:  "deploy",
		Message:  "done",
		Datetime: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}, log.Notifications[0])

	assert.Equal(t, []call{
		{methodGetGroups, map[string]any{"user_id": "9007199254740993"}},
		{methodAddSubscriber, map[string]any{"user_id": "9007199254740993", "group": "ops"}},
		{methodRemoveSubscriber, map[string]any{"user_id": "9007199254740993", "group": "ops"}},
		{methodAddGroup, map[string]any{"group_name": "ops", "admin_email": "root@example.com", "token": "secret"}},
		{methodRemoveGroup, map[string]any{"group_name": "ops", "admin_email": "root@example.com"}},
		{methodAddMessage, map[string]any{"channel": "ops", "subject": "deploy", "message": "done"}},
		{methodGetMessages, map[string]any{
			"channels": []any{"ops", "billing"},
			"offset":   "9007199254740990",
			"limit":    "20",
		}},
	}, srv.hits())
}

func TestClient_MalformedResponse(t *testing.T) {
	c, _ := newDirectory(t, func(method string) (map[string]any, error) {
		return map[string]any{"id": 1.5, "datetime": "2024-05-01T10:00:00Z"}, nil
	})

	_, err := c.AddMessage(context.Background(), "ops", "s", "m")
	assert.ErrorContains(t, err, "id")
}

func TestClient_Retries(t *testing.T) {
	tests := []struct {
		name     string
		code     codes.Code
		call     func(c *Client) error
		wantHits int
	}{
		{
			name: "write is sent once",
			code: codes.ResourceExhausted,
			call: func(c *Client) error {
				_, err := c.AddMessage(context.Background(), "ops", "s", "m")
				return err
			},
			wantHits: 1,
		},
		{
			name: "subscription change is sent once",
			code: codes.Unavailable,
			call: func(c *Client) error {
				return c.AddSubscriber(context.Background(), 1, "ops")
			},
			wantHits: 1,
		},
		{
			name: "read is retried",
			code: codes.Unavailable,
			call: func(c *Client) error {
				_, err := c.GetGroups(context.Background(), 1)
				return err
			},
			wantHits: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newDirectory(t, func(string) (map[string]any, error) {
				return nil, status.Error(tt.code, "busy")
			})

			err := tt.call(c)
			assert.Equal(t, tt.code, status.Code(err))
			assert.Len(t, srv.hits(), tt.wantHits)
		})
	}
}

func TestClient_BreakerOpensOnOutage(t *testing.T) {
	c, srv := newDirectory(t, func(string) (map[string]any, error) {
		return nil, status.Error(codes.Internal, "boom")
	})
	ctx := context.Background()

	for range 5 {
		err := c.AddGroup(ctx, model.Group{Name: "ops"}, "t")
		assert.Equal(t, codes.Internal, status.Code(err))
	}

	err := c.AddGroup(ctx, model.Group{Name: "ops"}, "t")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Len(t, srv.hits(), 5)
}

func TestClient_BreakerIgnoresRejections(t *testing.T) {
	c, srv := newDirectory(t, func(string) (map[string]any, error) {
		return nil, status.Error(codes.InvalidArgument, "bad group")
	})
	ctx := context.Background()

	for range 10 {
		err := c.AddGroup(ctx, model.Group{Name: "ops"}, "t")
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
		assert.NotErrorIs(t, err, ErrUnavailable)
	}
	assert.Len(t, srv.hits(), 10)
}

func TestParseInt64(t *testing.T) {
	tests := []struct {
		name    string
		in      *structpb.Value
		want    int64
		wantErr bool
	}{
		{name: "decimal string", in: structpb.NewStringValue("9007199254740993"), want: 9007199254740993},
		{name: "negative string", in: structpb.NewStringValue("-7"), want: -7},
		{name: "small number", in: structpb.NewNumberValue(42), want: 42},
		{name: "fraction", in: structpb.NewNumberValue(1.5), wantErr: true},
		{name: "number beyond float precision", in: structpb.NewNumberValue(1 << 60), wantErr: true},
		{name: "garbage", in: structpb.NewStringValue("12a"), wantErr: true},
		{name: "bool", in: structpb.NewBoolValue(true), wantErr: true},
		{name: "missing", in: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInt64(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDatetime(t *testing.T) {
	got, err := parseDatetime(structpb.NewStringValue("2024-05-01T12:00:00.5+02:00"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 500_000_000, time.UTC), got)

	_, err = parseDatetime(structpb.NewStringValue(""))
	assert.Error(t, err)

	_, err = parseDatetime(structpb.NewStringValue("yesterday"))
	assert.Error(t, err)

	_, err = parseDatetime(nil)
	assert.Error(t, err)
}
