// Package notification is the client side of the external notification service that owns
// group memberships and the message log.
//
// The service speaks gRPC with google.protobuf.Struct bodies, so the client needs no
// generated stubs: every call is a conn.Invoke on "/notification.NotificationService/<Method>".
// Struct numbers are doubles, so 64-bit ids travel as decimal strings.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/retry"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/webitel/im-notification-gateway/config"
	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

const serviceName = "notification.NotificationService"

const (
	methodGetGroups        = "GetGroups"
	methodAddSubscriber    = "AddSubscriber"
	methodRemoveSubscriber = "RemoveSubscriber"
	methodAddGroup         = "AddGroup"
	methodRemoveGroup      = "RemoveGroup"
	methodAddMessage       = "AddMessage"
	methodGetMessages      = "GetMessages"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("notification directory unavailable")

// maxExactInt is the largest integer a float64 holds without rounding.
const maxExactInt = 1 << 53

// Writes are not idempotent: a retried AddMessage would record the message twice.
var noRetry = []grpc.CallOption{retry.Disable()}

// Client is a resilient gRPC client of the notification service.
type Client struct {
	conn    *grpc.ClientConn
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  *slog.Logger
}

// New dials target lazily. Transport failures are retried by the interceptor chain;
// a run of them opens the breaker so stream handshakes degrade fast instead of piling up.
func New(target string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	grpcLogger := logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		logger.Log(ctx, slog.Level(lvl), msg, fields...)
	})

	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(
			logging.UnaryClientInterceptor(grpcLogger, logging.WithLogOnEvents(logging.FinishCall)),
			retry.UnaryClientInterceptor(
				retry.WithMax(3),
				retry.WithCodes(codes.Unavailable, codes.ResourceExhausted),
				retry.WithBackoff(retry.BackoffExponential(100*time.Millisecond)),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("notification client: dial %s: %w", target, err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        serviceName,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Rejections by the service are answers, not outages.
		IsSuccessful: func(err error) bool {
			switch status.Code(err) {
			case codes.OK, codes.InvalidArgument, codes.NotFound, codes.AlreadyExists, codes.PermissionDenied, codes.FailedPrecondition:
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[CIRCUIT_BREAKER] state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &Client{
		conn:    conn,
		breaker: breaker,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// NewFromConfig is the fx constructor.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	return New(cfg.Notification.DirectoryAddress, cfg.Notification.CallTimeout, logger)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) GetGroups(ctx context.Context, userID int64) ([]string, error) {
	resp, err := c.invoke(ctx, methodGetGroups, map[string]any{"user_id": formatID(userID)})
	if err != nil {
		return nil, err
	}

	values := resp.GetFields()["groups"].GetListValue().GetValues()
	groups := make([]string, 0, len(values))
	for _, v := range values {
		if g := v.GetStringValue(); g != "" {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

func (c *Client) AddSubscriber(ctx context.Context, userID int64, group string) error {
	_, err := c.invoke(ctx, methodAddSubscriber, map[string]any{"user_id": formatID(userID), "group": group}, noRetry...)
	return err
}

func (c *Client) RemoveSubscriber(ctx context.Context, userID int64, group string) error {
	_, err := c.invoke(ctx, methodRemoveSubscriber, map[string]any{"user_id": formatID(userID), "group": group}, noRetry...)
	return err
}

func (c *Client) AddGroup(ctx context.Context, group model.Group, token string) error {
	_, err := c.invoke(ctx, methodAddGroup, map[string]any{
		"group_name":  group.Name,
		"admin_email": group.AdminEmail,
		"token":       token,
	}, noRetry...)
	return err
}

func (c *Client) RemoveGroup(ctx context.Context, group model.Group) error {
	_, err := c.invoke(ctx, methodRemoveGroup, map[string]any{
		"group_name":  group.Name,
		"admin_email": group.AdminEmail,
	}, noRetry...)
	return err
}

func (c *Client) AddMessage(ctx context.Context, channel, subject, message string) (*model.RecordedMessage, error) {
	resp, err := c.invoke(ctx, methodAddMessage, map[string]any{
		"channel": channel,
		"subject": subject,
		"message": message,
	}, noRetry...)
	if err != nil {
		return nil, err
	}

	fields := resp.GetFields()
	id, err := parseInt64(fields["id"])
	if err != nil {
		return nil, fmt.Errorf("notification client: %s: id: %w", methodAddMessage, err)
	}
	datetime, err := parseDatetime(fields["datetime"])
	if err != nil {
		return nil, fmt.Errorf("notification client: %s: %w", methodAddMessage, err)
	}
	return &model.RecordedMessage{ID: id, Datetime: datetime}, nil
}

func (c *Client) GetMessages(ctx context.Context, channels []string, offset, limit int64) (*model.NotificationLog, error) {
	list := make([]any, len(channels))
	for i, ch := range channels {
		list[i] = ch
	}

	resp, err := c.invoke(ctx, methodGetMessages, map[string]any{
		"channels": list,
		"offset":   formatID(offset),
		"limit":    formatID(limit),
	})
	if err != nil {
		return nil, err
	}

	fields := resp.GetFields()
	count, err := parseInt64(fields["count"])
	if err != nil {
		return nil, fmt.Errorf("notification client: %s: count: %w", methodGetMessages, err)
	}
	values := fields["notifications"].GetListValue().GetValues()
	out := &model.NotificationLog{
		Notifications: make([]*model.NotificationMessage, 0, len(values)),
		Count:         count,
	}
	for _, v := range values {
		n := v.GetStructValue().GetFields()
		id, err := parseInt64(n["id"])
		if err != nil {
			return nil, fmt.Errorf("notification client: %s: id: %w", methodGetMessages, err)
		}
		datetime, err := parseDatetime(n["datetime"])
		if err != nil {
			return nil, fmt.Errorf("notification client: %s: %w", methodGetMessages, err)
		}
		out.Notifications = append(out.Notifications, &model.NotificationMessage{
			ID:       id,
			Channel:  n["channel"].GetStringValue(),
			Subject:  n["subject"].GetStringValue(),
			Message:  n["message"].GetStringValue(),
			Datetime: datetime,
		})
	}
	return out, nil
}

// invoke runs one unary call behind the breaker and the per-call deadline.
func (c *Client) invoke(ctx context.Context, method string, body map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(body)
	if err != nil {
		return nil, fmt.Errorf("notification client: %s: encode request: %w", method, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp := new(structpb.Struct)
	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.conn.Invoke(ctx, "/"+serviceName+"/"+method, req, resp, opts...)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("notification client: %s: %w", method, ErrUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("notification client: %s: %w", method, err)
	}
	return resp, nil
}

func parseDatetime(v *structpb.Value) (time.Time, error) {
	s := v.GetStringValue()
	if s == "" {
		return time.Time{}, errors.New("datetime is missing")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("datetime %q: %w", s, err)
	}
	return t.UTC(), nil
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

// parseInt64 reads an integer sent as a decimal string. Plain numbers are still accepted
// while they are exactly representable.
func parseInt64(v *structpb.Value) (int64, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return strconv.ParseInt(k.StringValue, 10, 64)
	case *structpb.Value_NumberValue:
		f := k.NumberValue
		if f != math.Trunc(f) || math.Abs(f) > maxExactInt {
			return 0, fmt.Errorf("number %v is not an exact integer", f)
		}
		return int64(f), nil
	case nil:
		return 0, errors.New("value is missing")
	default:
		return 0, fmt.Errorf("unexpected value kind %T", k)
	}
}
