package zeromq

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pebbe/zmq4"

	"github.com/open-teleop/robot-server/pkg/config"
	customlog "github.com/open-teleop/robot-server/pkg/log"
	"github.com/open-teleop/robot-server/pkg/teleop"
)

// Common errors
var (
	ErrServiceClosed      = errors.New("zeromq service is closed")
	ErrInvalidMessage     = errors.New("invalid message format")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Request is the inbound message envelope. Data stays raw until the handler
// decodes it.
type Request struct {
	Type      string          `json:"type"`
	Timestamp float64         `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Response is the outbound message envelope.
type Response struct {
	Type      string      `json:"type"`
	Timestamp float64     `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// ErrorData is the payload of an ERROR response.
type ErrorData struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// NewResponse builds a response envelope stamped with the current time.
func NewResponse(msgType string, data interface{}) *Response {
	return &Response{
		Type:      msgType,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Data:      data,
	}
}

// MessageHandler processes a single decoded request.
type MessageHandler interface {
	HandleMessage(req *Request) (*Response, error)
}

// HandlerFunc is a function type that implements MessageHandler
type HandlerFunc func(req *Request) (*Response, error)

// HandleMessage calls the function
func (f HandlerFunc) HandleMessage(req *Request) (*Response, error) {
	return f(req)
}

// errorCode maps handler failures to wire error codes. Protocol and
// component errors reject the call; the service keeps serving.
func errorCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidMessage), errors.Is(err, teleop.ErrProtocol):
		return 400
	case errors.Is(err, teleop.ErrInvalidComponent):
		return 422
	case errors.Is(err, ErrUnknownMessageType):
		return 501
	default:
		return 500
	}
}

// MessageReceiver handles receiving requests on a ZeroMQ REP socket
type MessageReceiver struct {
	socket     *zmq4.Socket
	dispatcher *MessageDispatcher
	poller     *zmq4.Poller
	logger     customlog.Logger
	running    bool
	wg         *sync.WaitGroup
}

// newMessageReceiver creates a new MessageReceiver bound to the configured
// request address. Bind failures are fatal at startup.
func newMessageReceiver(ctx *zmq4.Context, cfg *config.Config, dispatcher *MessageDispatcher, logger customlog.Logger, wg *sync.WaitGroup) (*MessageReceiver, error) {
	socket, err := ctx.NewSocket(zmq4.REP)
	if err != nil {
		return nil, fmt.Errorf("failed to create REP socket: %w", err)
	}

	if err := socket.Bind(cfg.ZeroMQ.RequestBindAddress); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", cfg.ZeroMQ.RequestBindAddress, err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	// Receive and send timeouts prevent indefinite blocking during shutdown.
	const socketTimeout = 1 * time.Second
	if err := socket.SetRcvtimeo(socketTimeout); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set receive timeout: %w", err)
	}
	if err := socket.SetSndtimeo(socketTimeout); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set send timeout: %w", err)
	}

	poller := zmq4.NewPoller()
	poller.Add(socket, zmq4.POLLIN)

	logger.Infof("MessageReceiver initialized on %s", cfg.ZeroMQ.RequestBindAddress)

	return &MessageReceiver{
		socket:     socket,
		dispatcher: dispatcher,
		poller:     poller,
		logger:     logger,
		running:    false,
		wg:         wg,
	}, nil
}

// Start begins the request serving loop on its own goroutine.
func (r *MessageReceiver) Start() {
	if r.running {
		return
	}

	r.running = true
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		r.logger.Infof("MessageReceiver started")

		for r.running {
			// Poll with a timeout to allow for clean shutdown.
			sockets, err := r.poller.Poll(500 * time.Millisecond)
			if err != nil {
				if r.running {
					r.logger.Errorf("Error polling socket: %v", err)
				}
				continue
			}

			if len(sockets) == 0 {
				continue
			}

			msg, err := r.socket.RecvBytes(0)
			if err != nil {
				if r.running {
					r.logger.Errorf("Error receiving message: %v", err)
				}
				continue
			}

			response, err := r.dispatcher.Dispatch(msg)
			if err != nil {
				r.logger.Warnf("Rejected request: %v", err)
				errorResp := NewResponse(MsgTypeError, ErrorData{
					Message: err.Error(),
					Code:    errorCode(err),
				})
				errData, _ := json.Marshal(errorResp)
				if _, err := r.socket.SendBytes(errData, 0); err != nil && r.running {
					r.logger.Errorf("Error sending error response: %v", err)
				}
				continue
			}

			if _, err := r.socket.SendBytes(response, 0); err != nil && r.running {
				r.logger.Errorf("Error sending response: %v", err)
			}
		}
	}()
}

// Stop halts the serving loop and closes the socket to interrupt any
// blocking call.
func (r *MessageReceiver) Stop() {
	if !r.running {
		return
	}
	r.running = false
	if r.socket != nil {
		r.socket.Close()
	}
}

// MessageSender publishes loop output on a ZeroMQ PUB socket
type MessageSender struct {
	socket  *zmq4.Socket
	logger  customlog.Logger
	running bool
	mu      sync.Mutex
}

func newMessageSender(ctx *zmq4.Context, cfg *config.Config, logger customlog.Logger) (*MessageSender, error) {
	socket, err := ctx.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	if err := socket.Bind(cfg.ZeroMQ.PublishBindAddress); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", cfg.ZeroMQ.PublishBindAddress, err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	logger.Infof("MessageSender initialized on %s", cfg.ZeroMQ.PublishBindAddress)

	return &MessageSender{
		socket:  socket,
		logger:  logger,
		running: true,
	}, nil
}

// PublishMessage sends a message with the given topic
func (s *MessageSender) PublishMessage(topic string, message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrServiceClosed
	}

	// Topic frame first, then the payload.
	if _, err := s.socket.Send(topic, zmq4.SNDMORE); err != nil {
		return fmt.Errorf("failed to send topic: %w", err)
	}
	if _, err := s.socket.SendBytes(message, 0); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Close cleans up resources
func (s *MessageSender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	if s.socket != nil {
		s.socket.Close()
		s.socket = nil
	}
}

// MessageDispatcher routes decoded requests to the registered handlers
type MessageDispatcher struct {
	handlers map[string]MessageHandler
	logger   customlog.Logger
	mu       sync.RWMutex
}

// NewMessageDispatcher creates a new message dispatcher
func NewMessageDispatcher(logger customlog.Logger) *MessageDispatcher {
	return &MessageDispatcher{
		handlers: make(map[string]MessageHandler),
		logger:   logger,
	}
}

// RegisterHandler adds a handler for a specific message type
func (d *MessageDispatcher) RegisterHandler(messageType string, handler MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[messageType] = handler
	d.logger.Debugf("Registered handler for message type: %s", messageType)
}

// Dispatch decodes a request and routes it to the matching handler,
// returning the serialized response.
func (d *MessageDispatcher) Dispatch(data []byte) ([]byte, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if req.Type == "" {
		return nil, fmt.Errorf("%w: missing message type", ErrInvalidMessage)
	}

	d.mu.RLock()
	handler, exists := d.handlers[req.Type]
	d.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, req.Type)
	}

	resp, err := handler.HandleMessage(&req)
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize response: %w", err)
	}
	return out, nil
}

// Service coordinates ZeroMQ communications for the teleop server: a REP
// socket serving the leader's RPC calls and a PUB socket publishing
// synthesized actions and state transitions.
type Service struct {
	config     *config.Config
	ctx        *zmq4.Context
	receiver   *MessageReceiver
	sender     *MessageSender
	dispatcher *MessageDispatcher
	logger     customlog.Logger
	running    bool
	wg         sync.WaitGroup
}

// NewService creates the ZeroMQ service. Socket creation or bind failures
// are fatal; the caller should not retry.
func NewService(cfg *config.Config, logger customlog.Logger) (*Service, error) {
	ctx, err := zmq4.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ context: %w", err)
	}

	dispatcher := NewMessageDispatcher(logger)

	s := &Service{
		config:     cfg,
		ctx:        ctx,
		dispatcher: dispatcher,
		logger:     logger,
	}

	receiver, err := newMessageReceiver(ctx, cfg, dispatcher, logger, &s.wg)
	if err != nil {
		ctx.Term()
		return nil, err
	}
	s.receiver = receiver

	sender, err := newMessageSender(ctx, cfg, logger)
	if err != nil {
		receiver.Stop()
		ctx.Term()
		return nil, err
	}
	s.sender = sender

	return s, nil
}

// RegisterHandler adds a handler for a specific message type
func (s *Service) RegisterHandler(messageType string, handler MessageHandler) {
	s.dispatcher.RegisterHandler(messageType, handler)
}

// RegisterHandlerFunc adds a handler function for a specific message type
func (s *Service) RegisterHandlerFunc(messageType string, handler func(*Request) (*Response, error)) {
	s.dispatcher.RegisterHandler(messageType, HandlerFunc(handler))
}

// Start begins serving requests.
func (s *Service) Start() error {
	if s.running {
		return nil
	}
	s.running = true
	s.logger.Infof("Starting ZeroMQ service")
	s.receiver.Start()
	return nil
}

// Stop halts the service and joins the receiver goroutine.
func (s *Service) Stop() {
	if !s.running {
		return
	}

	s.logger.Infof("Stopping ZeroMQ service")
	s.running = false

	s.receiver.Stop()
	s.sender.Close()

	s.wg.Wait()
	s.logger.Infof("Receiver goroutine finished")

	if s.ctx != nil {
		s.ctx.Term()
		s.ctx = nil
	}

	s.logger.Infof("ZeroMQ service stopped")
}

// PublishMessage sends a message with the given topic
func (s *Service) PublishMessage(topic string, message []byte) error {
	if !s.running {
		return ErrServiceClosed
	}
	return s.sender.PublishMessage(topic, message)
}

// PublishJSON publishes a JSON-serializable message with the given topic
func (s *Service) PublishJSON(topic string, messageType string, data interface{}) error {
	msgData, err := json.Marshal(NewResponse(messageType, data))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return s.PublishMessage(topic, msgData)
}
