package zeromq

import (
	"encoding/json"
	"fmt"

	customlog "github.com/open-teleop/robot-server/pkg/log"
)

// Message types served over the REP socket.
const (
	MsgTypeNumDOFs           = "NUM_DOFS"
	MsgTypeGetJointState     = "GET_JOINT_STATE"
	MsgTypeCommandJointState = "COMMAND_JOINT_STATE"
	MsgTypeGetObservations   = "GET_OBSERVATIONS"
	MsgTypeFreedriveEnabled  = "FREEDRIVE_ENABLED"
	MsgTypeSetFreedriveMode  = "SET_FREEDRIVE_MODE"
	MsgTypeControlEvent      = "CONTROL_EVENT"

	MsgTypeNumDOFsResponse      = "NUM_DOFS_RESPONSE"
	MsgTypeJointStateResponse   = "JOINT_STATE_RESPONSE"
	MsgTypeObservationsResponse = "OBSERVATIONS_RESPONSE"
	MsgTypeFreedriveResponse    = "FREEDRIVE_RESPONSE"
	MsgTypeAck                  = "ACK"
	MsgTypeError                = "ERROR"
)

// Robot is the command surface the transport exposes remotely. Implemented
// by the teleop server; every method is safe to call from the receiver
// goroutine.
type Robot interface {
	NumDOFs() int
	JointState() []float64
	CommandJointState(vec []float64, component string) error
	Observations() map[string]interface{}
	FreedriveEnabled() bool
	SetFreedriveMode(enable bool)
	PushControlEvent(name string) error
}

type commandJointStateData struct {
	JointState []float64 `json:"joint_state"`
	Component  string    `json:"component,omitempty"`
}

type setFreedriveData struct {
	Enable bool `json:"enable"`
}

type controlEventData struct {
	Event string `json:"event"`
}

// RobotHandlers adapts the Robot surface onto the message dispatcher.
type RobotHandlers struct {
	robot  Robot
	logger customlog.Logger
}

// RegisterRobotHandlers wires the full RPC surface into the service.
func RegisterRobotHandlers(svc *Service, robot Robot, logger customlog.Logger) *RobotHandlers {
	h := &RobotHandlers{robot: robot, logger: logger}

	svc.RegisterHandlerFunc(MsgTypeNumDOFs, h.handleNumDOFs)
	svc.RegisterHandlerFunc(MsgTypeGetJointState, h.handleGetJointState)
	svc.RegisterHandlerFunc(MsgTypeCommandJointState, h.handleCommandJointState)
	svc.RegisterHandlerFunc(MsgTypeGetObservations, h.handleGetObservations)
	svc.RegisterHandlerFunc(MsgTypeFreedriveEnabled, h.handleFreedriveEnabled)
	svc.RegisterHandlerFunc(MsgTypeSetFreedriveMode, h.handleSetFreedriveMode)
	svc.RegisterHandlerFunc(MsgTypeControlEvent, h.handleControlEvent)

	logger.Infof("Registered robot RPC handlers")
	return h
}

func (h *RobotHandlers) handleNumDOFs(*Request) (*Response, error) {
	return NewResponse(MsgTypeNumDOFsResponse, map[string]interface{}{
		"num_dofs": h.robot.NumDOFs(),
	}), nil
}

func (h *RobotHandlers) handleGetJointState(*Request) (*Response, error) {
	return NewResponse(MsgTypeJointStateResponse, map[string]interface{}{
		"joint_state": h.robot.JointState(),
	}), nil
}

func (h *RobotHandlers) handleCommandJointState(req *Request) (*Response, error) {
	var data commandJointStateData
	if err := json.Unmarshal(req.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if len(data.JointState) == 0 {
		return nil, fmt.Errorf("%w: empty joint_state", ErrInvalidMessage)
	}
	if err := h.robot.CommandJointState(data.JointState, data.Component); err != nil {
		return nil, err
	}
	return NewResponse(MsgTypeAck, map[string]interface{}{"status": "OK"}), nil
}

func (h *RobotHandlers) handleGetObservations(*Request) (*Response, error) {
	return NewResponse(MsgTypeObservationsResponse, h.robot.Observations()), nil
}

func (h *RobotHandlers) handleFreedriveEnabled(*Request) (*Response, error) {
	return NewResponse(MsgTypeFreedriveResponse, map[string]interface{}{
		"enabled": h.robot.FreedriveEnabled(),
	}), nil
}

func (h *RobotHandlers) handleSetFreedriveMode(req *Request) (*Response, error) {
	var data setFreedriveData
	if err := json.Unmarshal(req.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	h.robot.SetFreedriveMode(data.Enable)
	return NewResponse(MsgTypeAck, map[string]interface{}{"status": "OK"}), nil
}

func (h *RobotHandlers) handleControlEvent(req *Request) (*Response, error) {
	var data controlEventData
	if err := json.Unmarshal(req.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := h.robot.PushControlEvent(data.Event); err != nil {
		return nil, err
	}
	h.logger.Debugf("Queued control event: %s", data.Event)
	return NewResponse(MsgTypeAck, map[string]interface{}{"status": "OK"}), nil
}
