package http

import (
	stdhttp "net/http"

	"github.com/webitel/im-notification-gateway/internal/handler/lp"
	"github.com/webitel/im-notification-gateway/internal/handler/sse"
	"github.com/webitel/im-notification-gateway/internal/handler/ws"
	"go.uber.org/fx"
)

var Module = fx.Module("http-handler",
	fx.Provide(
		NewNotificationHandler,
		sse.NewSSEHandler,
		ws.NewWSHandler,
		lp.NewLPHandler,
		func(p RouterParams) stdhttp.Handler { return NewRouter(p) },
	),
)
