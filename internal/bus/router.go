// Package bus carries protocol messages between an application process
// and the hub daemon over a unix domain socket. The Router demultiplexes
// inbound messages to typed channels based on match functions.
package bus

import (
	"net"
	"reflect"
	"sync"

	"github.com/sharedesk/contenthub/internal/protocol"
	"github.com/sirupsen/logrus"
)

// Router reads protocol messages off a connection and routes each one to
// every registered channel whose match function accepts it.
type Router struct {
	Conn   net.Conn
	codec  *protocol.Codec
	logger *logrus.Logger
	routes map[interface{}]func(protocol.Message) bool

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func NewRouter(conn net.Conn, logger *logrus.Logger) *Router {
	return &Router{
		Conn:   conn,
		codec:  protocol.NewCodec(),
		logger: logger,
		done:   make(chan struct{}),
		routes: make(map[interface{}]func(protocol.Message) bool),
	}
}

// AddRoute registers a channel for messages accepted by matchFn. Must be
// called before Start.
func (r *Router) AddRoute(ch interface{}, matchFn func(protocol.Message) bool) {
	if reflect.TypeOf(ch).Kind() != reflect.Chan {
		panic("bus: AddRoute argument must be a channel")
	}
	r.routes[ch] = matchFn
}

func (r *Router) Start() {
	go r.listen()
}

// Done is closed when the connection is gone.
func (r *Router) Done() <-chan struct{} {
	return r.done
}

func (r *Router) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
		_ = r.Conn.Close()
	})
}

func (r *Router) listen() {
	defer r.Close()

	for {
		select {
		case <-r.done:
			return
		default:
			msg, err := r.codec.Decode(r.Conn)
			if err != nil {
				select {
				case <-r.done:
				default:
					r.logger.Debugf("Bus connection closed: %v", err)
				}
				return
			}
			r.routeMessage(msg)
		}
	}
}

// WriteMessage serializes a message onto the connection. Safe for
// concurrent use.
func (r *Router) WriteMessage(msg protocol.Message) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.codec.Encode(r.Conn, msg)
}

func (r *Router) routeMessage(msg protocol.Message) {
	msgVal := reflect.ValueOf(msg)

	matched := false
	for ch, matchFn := range r.routes {
		if !matchFn(msg) {
			continue
		}

		chVal := reflect.ValueOf(ch)
		if !msgVal.Type().AssignableTo(chVal.Type().Elem()) {
			continue
		}

		chVal.Send(msgVal)
		matched = true
	}

	if !matched {
		r.logger.Warnf("No route for message type %s", msg.Type())
	}
}
