package bridge

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Field names of the HomeService wire messages.
const (
	fieldRequestID = "request_id"
	fieldPlayer    = "player"
	fieldWorld     = "world"
	fieldX         = "x"
	fieldY         = "y"
	fieldZ         = "z"
	fieldLine      = "line"
	fieldKind      = "kind"
	fieldMessage   = "message"
	fieldTeleport  = "teleport"
	fieldName      = "name"
)

// ExecuteRequest is a player command forwarded by the host.
type ExecuteRequest struct {
	// RequestID is optional; the server generates one when empty.
	RequestID string
	Player    string
	World     string
	X, Y, Z   float64
	// Line is the raw command text, e.g. "sethome base" or "/home".
	Line string
}

// Teleport tells the host where to move the player.
type Teleport struct {
	Name    string
	World   string
	X, Y, Z float64
}

// ExecuteResponse is the outcome of a command.
type ExecuteResponse struct {
	RequestID string
	// Kind is the message key, e.g. "sethome-ok".
	Kind    string
	Message string
	// Teleport is set only when the player should be moved.
	Teleport *Teleport
}

func (r ExecuteRequest) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		fieldRequestID: r.RequestID,
		fieldPlayer:    r.Player,
		fieldWorld:     r.World,
		fieldX:         r.X,
		fieldY:         r.Y,
		fieldZ:         r.Z,
		fieldLine:      r.Line,
	})
}

func executeRequestFromStruct(s *structpb.Struct) (ExecuteRequest, error) {
	f := s.GetFields()
	var req ExecuteRequest
	var err error
	if req.RequestID, err = optionalString(f, fieldRequestID); err != nil {
		return ExecuteRequest{}, err
	}
	if req.Player, err = requiredString(f, fieldPlayer); err != nil {
		return ExecuteRequest{}, err
	}
	if req.World, err = requiredString(f, fieldWorld); err != nil {
		return ExecuteRequest{}, err
	}
	if req.Line, err = requiredString(f, fieldLine); err != nil {
		return ExecuteRequest{}, err
	}
	for name, dst := range map[string]*float64{fieldX: &req.X, fieldY: &req.Y, fieldZ: &req.Z} {
		if *dst, err = requiredNumber(f, name); err != nil {
			return ExecuteRequest{}, err
		}
	}
	return req, nil
}

func (r ExecuteResponse) toStruct() (*structpb.Struct, error) {
	m := map[string]interface{}{
		fieldRequestID: r.RequestID,
		fieldKind:      r.Kind,
		fieldMessage:   r.Message,
	}
	if t := r.Teleport; t != nil {
		m[fieldTeleport] = map[string]interface{}{
			fieldName:  t.Name,
			fieldWorld: t.World,
			fieldX:     t.X,
			fieldY:     t.Y,
			fieldZ:     t.Z,
		}
	}
	return structpb.NewStruct(m)
}

func executeResponseFromStruct(s *structpb.Struct) (ExecuteResponse, error) {
	f := s.GetFields()
	var resp ExecuteResponse
	var err error
	if resp.RequestID, err = optionalString(f, fieldRequestID); err != nil {
		return ExecuteResponse{}, err
	}
	if resp.Kind, err = requiredString(f, fieldKind); err != nil {
		return ExecuteResponse{}, err
	}
	if resp.Message, err = requiredString(f, fieldMessage); err != nil {
		return ExecuteResponse{}, err
	}

	tv, ok := f[fieldTeleport]
	if !ok {
		return resp, nil
	}
	ts := tv.GetStructValue()
	if ts == nil {
		return ExecuteResponse{}, fmt.Errorf("field %q: expected struct", fieldTeleport)
	}
	tf := ts.GetFields()
	t := &Teleport{}
	if t.Name, err = requiredString(tf, fieldName); err != nil {
		return ExecuteResponse{}, err
	}
	if t.World, err = requiredString(tf, fieldWorld); err != nil {
		return ExecuteResponse{}, err
	}
	for name, dst := range map[string]*float64{fieldX: &t.X, fieldY: &t.Y, fieldZ: &t.Z} {
		if *dst, err = requiredNumber(tf, name); err != nil {
			return ExecuteResponse{}, err
		}
	}
	resp.Teleport = t
	return resp, nil
}

func requiredString(f map[string]*structpb.Value, name string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", fmt.Errorf("field %q is required", name)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("field %q: expected string", name)
	}
	return s.StringValue, nil
}

func optionalString(f map[string]*structpb.Value, name string) (string, error) {
	if _, ok := f[name]; !ok {
		return "", nil
	}
	return requiredString(f, name)
}

func requiredNumber(f map[string]*structpb.Value, name string) (float64, error) {
	v, ok := f[name]
	if !ok {
		return 0, fmt.Errorf("field %q is required", name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("field %q: expected number", name)
	}
	return n.NumberValue, nil
}
