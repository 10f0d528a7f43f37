// Package httpapi exposes the haptics bus surface over HTTP. Every actuation
// is forwarded as a bus request to the haptics service and the reply is
// returned as JSON.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"haptics-go/bus"
	"haptics-go/errcode"
	"haptics-go/services/haptics/service"
	"haptics-go/types"
)

const defaultTimeout = 10 * time.Second

type Options struct {
	Logger      zerolog.Logger
	CORSOrigins []string
	// Timeout bounds the wait for a service reply.
	Timeout time.Duration
	// Registerer and Gatherer default to the prometheus default registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

type API struct {
	conn    *bus.Connection
	opts    Options
	started time.Time
	router  *gin.Engine
}

func New(conn *bus.Connection, opts Options) *API {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	a := &API{conn: conn, opts: opts, started: time.Now()}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(opts.Logger))
	r.Use(newHTTPMetrics(opts.Registerer).middleware())
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: opts.CORSOrigins,
			AllowMethods: []string{"GET", "POST"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	a.router = r
	a.routes()
	return a
}

// Handler returns the HTTP handler.
func (a *API) Handler() http.Handler { return a.router }

func (a *API) routes() {
	r := a.router
	r.GET("/health", func(c *gin.Context) {
		st, _ := retained[types.ServiceState](a.conn, service.StateTopic())
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(a.started).String(),
			"service": st,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.opts.Gatherer, promhttp.HandlerOpts{})))

	g := r.Group("/actuators")
	g.GET("", a.listActuators)
	g.GET("/:id/state", a.actuatorState)
	g.GET("/:id/info", a.control(service.VerbInfo, nil))
	g.POST("/:id/ping", a.control(service.VerbPing, nil))
	g.POST("/:id/on", a.control(service.VerbOn, bindOn))
	g.POST("/:id/off", a.control(service.VerbOff, nil))
	g.POST("/:id/amplitude", a.control(service.VerbAmplitude, bindJSON[types.AmplitudeRequest]))
	g.POST("/:id/external", a.control(service.VerbExternal, bindJSON[types.ExternalControlRequest]))
	g.POST("/:id/effect", a.control(service.VerbEffect, bindEffect))
	g.POST("/:id/compose", a.control(service.VerbCompose, bindCompose))
	g.POST("/:id/always-on", a.control(service.VerbAlwaysOn, bindAlwaysOn))
	g.DELETE("/:id/always-on/:slot", a.control(service.VerbAlwaysOff, bindSlot))
}

// binder turns a request into the bus payload for one verb.
type binder func(c *gin.Context) (any, error)

func (a *API) control(verb string, bind binder) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := actuatorID(c)
		if !ok {
			return
		}
		var p any
		if bind != nil {
			var err error
			if p, err = bind(c); err != nil {
				c.JSON(http.StatusBadRequest, types.ErrorReply{Error: string(errcode.InvalidPayload)})
				return
			}
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), a.opts.Timeout)
		defer cancel()
		reply, err := a.conn.RequestWait(ctx, a.conn.NewMessage(service.ControlTopic(id, verb), p, false))
		if err != nil {
			c.JSON(http.StatusGatewayTimeout, types.ErrorReply{Error: string(errcode.Timeout)})
			return
		}
		c.JSON(httpStatus(reply.Payload), reply.Payload)
	}
}

func (a *API) listActuators(c *gin.Context) {
	out := map[string]types.ActuatorState{}
	for _, m := range a.conn.Retained(bus.T("haptics", "+", "state")) {
		if st, ok := m.Payload.(types.ActuatorState); ok {
			id, _ := m.Topic.At(1).(int32)
			out[strconv.Itoa(int(id))] = st
		}
	}
	c.JSON(http.StatusOK, gin.H{"actuators": out})
}

func (a *API) actuatorState(c *gin.Context) {
	id, ok := actuatorID(c)
	if !ok {
		return
	}
	st, ok := retained[types.ActuatorState](a.conn, service.ActuatorStateTopic(id))
	if !ok {
		c.JSON(http.StatusNotFound, types.ErrorReply{Error: string(errcode.UnknownActuator)})
		return
	}
	c.JSON(http.StatusOK, st)
}

func actuatorID(c *gin.Context) (types.ActuatorID, bool) {
	n, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, types.ErrorReply{Error: string(errcode.InvalidTopic)})
		return 0, false
	}
	return types.ActuatorID(n), true
}

// retained reads the retained message on topic, if there is one.
func retained[T any](conn *bus.Connection, topic bus.Topic) (T, bool) {
	sub := conn.Subscribe(topic)
	defer conn.Unsubscribe(sub)
	var zero T
	select {
	case m := <-sub.Channel():
		v, ok := m.Payload.(T)
		return v, ok
	default:
		return zero, false
	}
}

func httpStatus(p any) int {
	switch r := p.(type) {
	case types.ResultReply:
		switch r.Status {
		case types.StatusOK:
			return http.StatusOK
		case types.StatusUnsupported:
			return http.StatusNotImplemented
		default:
			return http.StatusBadGateway
		}
	case types.ErrorReply:
		switch errcode.Parse(r.Error) {
		case errcode.NotReady:
			return http.StatusServiceUnavailable
		case errcode.UnknownActuator:
			return http.StatusNotFound
		case errcode.InvalidParams, errcode.InvalidPayload, errcode.InvalidTopic:
			return http.StatusBadRequest
		case errcode.Busy:
			return http.StatusTooManyRequests
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusOK
}
