package proto

import (
	"encoding/binary"
	"fmt"
)

// Command and response names as negotiated through the CommandRegistry.
// These are the stable, human-readable identifiers; the numeric id bound
// to each is only meaningful within a single session.
const (
	KindIdentify           = "identify"
	KindGetConfig          = "get_config"
	KindGetStatus          = "get_status"
	KindQueueStep          = "queue_step"
	KindSetDigitalOut      = "set_digital_out"
	KindSetPwmOut          = "set_pwm_out"
	KindIdentifyResponse   = "identify_response"
	KindGetConfigResponse  = "get_config_response"
	KindGetStatusResponse  = "get_status_response"
	KindSetDigitalOutAck   = "set_digital_out_ack"
	KindSetPwmOutAck       = "set_pwm_out_ack"
)

// Message is anything that can travel across the wire protocol: a typed
// command from the host, a typed response from the MCU, or the Unknown
// fallthrough for an id the receiver's registry has no name for.
type Message interface {
	// Kind returns the negotiated command name for this message.
	Kind() string
	// AppendPayload serializes the message's fields (big-endian) onto dst
	// and returns the extended slice.
	AppendPayload(dst []byte) []byte
}

// Identify requests the MCU's protocol dictionary / firmware identity.
type Identify struct{}

func (Identify) Kind() string                        { return KindIdentify }
func (Identify) AppendPayload(dst []byte) []byte      { return dst }

// GetConfig requests the MCU's static hardware configuration.
type GetConfig struct{}

func (GetConfig) Kind() string                   { return KindGetConfig }
func (GetConfig) AppendPayload(dst []byte) []byte { return dst }

// GetStatus requests the MCU's current runtime status.
type GetStatus struct{}

func (GetStatus) Kind() string                   { return KindGetStatus }
func (GetStatus) AppendPayload(dst []byte) []byte { return dst }

// QueueStep enqueues a run of steps on the MCU's step queue: pulse the
// steppers named by StepperMask in the directions named by DirectionMask,
// Count times, starting at Interval ticks and adjusting by Add ticks after
// each pulse. Count/Add let the host compress an acceleration ramp sharing
// one mask pair into a single command instead of sending every individual
// interval, mirroring a real stepper MCU's queue_step/set_next_step_dir
// pairing collapsed into one message since this wire format has no
// separate per-stepper oid addressing.
type QueueStep struct {
	Interval      uint32
	Count         uint16
	Add           int16
	StepperMask   byte
	DirectionMask byte
}

func (QueueStep) Kind() string { return KindQueueStep }

func (m QueueStep) AppendPayload(dst []byte) []byte {
	var buf [10]byte
	binary.BigEndian.PutUint32(buf[0:4], m.Interval)
	binary.BigEndian.PutUint16(buf[4:6], m.Count)
	binary.BigEndian.PutUint16(buf[6:8], uint16(m.Add))
	buf[8] = m.StepperMask
	buf[9] = m.DirectionMask
	return append(dst, buf[:]...)
}

// SetDigitalOut drives a GPIO pin high or low.
type SetDigitalOut struct {
	Pin   byte
	Value byte
}

func (SetDigitalOut) Kind() string { return KindSetDigitalOut }

func (m SetDigitalOut) AppendPayload(dst []byte) []byte {
	return append(dst, m.Pin, m.Value)
}

// SetPwmOut drives a PWM-capable pin to a 16-bit duty cycle.
type SetPwmOut struct {
	Pin   byte
	Value uint16
}

func (SetPwmOut) Kind() string { return KindSetPwmOut }

func (m SetPwmOut) AppendPayload(dst []byte) []byte {
	var buf [3]byte
	buf[0] = m.Pin
	binary.BigEndian.PutUint16(buf[1:3], m.Value)
	return append(dst, buf[:]...)
}

// IdentifyResponse carries the MCU's protocol dictionary metadata.
type IdentifyResponse struct {
	IsConfigValid bool
	Version       []byte
	McuName       []byte
}

func (IdentifyResponse) Kind() string { return KindIdentifyResponse }

func (m IdentifyResponse) AppendPayload(dst []byte) []byte {
	var flag byte
	if m.IsConfigValid {
		flag = 1
	}
	dst = append(dst, flag)
	dst = append(dst, byte(len(m.Version)))
	dst = append(dst, m.Version...)
	dst = append(dst, byte(len(m.McuName)))
	dst = append(dst, m.McuName...)
	return dst
}

// GetConfigResponse reports the MCU's hardware configuration. Fields are
// intentionally minimal: the configuration schema itself is an external
// collaborator (see SPEC_FULL.md §1); this only carries what the wire
// protocol needs to round-trip.
type GetConfigResponse struct {
	IsConfigValid bool
	NumSteppers   byte
	NumHeaters    byte
}

func (GetConfigResponse) Kind() string { return KindGetConfigResponse }

func (m GetConfigResponse) AppendPayload(dst []byte) []byte {
	var flag byte
	if m.IsConfigValid {
		flag = 1
	}
	return append(dst, flag, m.NumSteppers, m.NumHeaters)
}

// GetStatusResponse reports the MCU's runtime clock and emergency-stop
// state so the host can detect a stale or crashed MCU.
type GetStatusResponse struct {
	ClockTicks        uint32
	EmergencyStopped  bool
}

func (GetStatusResponse) Kind() string { return KindGetStatusResponse }

func (m GetStatusResponse) AppendPayload(dst []byte) []byte {
	var buf [5]byte
	binary.BigEndian.PutUint32(buf[0:4], m.ClockTicks)
	if m.EmergencyStopped {
		buf[4] = 1
	}
	return append(dst, buf[:]...)
}

// SetDigitalOutAck acknowledges a SetDigitalOut command.
type SetDigitalOutAck struct{}

func (SetDigitalOutAck) Kind() string                   { return KindSetDigitalOutAck }
func (SetDigitalOutAck) AppendPayload(dst []byte) []byte { return dst }

// SetPwmOutAck acknowledges a SetPwmOut command.
type SetPwmOutAck struct{}

func (SetPwmOutAck) Kind() string                   { return KindSetPwmOutAck }
func (SetPwmOutAck) AppendPayload(dst []byte) []byte { return dst }

// Unknown is the fallthrough for a command id the receiver's registry does
// not (yet) have a name for. Payload is the raw, still-encoded bytes.
type Unknown struct {
	ID      byte
	Payload []byte
}

func (u Unknown) Kind() string { return fmt.Sprintf("unknown(%d)", u.ID) }

func (u Unknown) AppendPayload(dst []byte) []byte {
	return append(dst, u.Payload...)
}

// decodePayload builds the typed Message for a negotiated command name from
// its raw (already CRC-verified) payload bytes.
func decodePayload(name string, id byte, payload []byte) (Message, error) {
	switch name {
	case KindIdentify:
		return Identify{}, nil
	case KindGetConfig:
		return GetConfig{}, nil
	case KindGetStatus:
		return GetStatus{}, nil
	case KindQueueStep:
		if len(payload) < 10 {
			return nil, fmt.Errorf("%w: queue_step needs 10 bytes, got %d", ErrInvalidPayload, len(payload))
		}
		return QueueStep{
			Interval:      binary.BigEndian.Uint32(payload[0:4]),
			Count:         binary.BigEndian.Uint16(payload[4:6]),
			Add:           int16(binary.BigEndian.Uint16(payload[6:8])),
			StepperMask:   payload[8],
			DirectionMask: payload[9],
		}, nil
	case KindSetDigitalOut:
		if len(payload) < 2 {
			return nil, fmt.Errorf("%w: set_digital_out needs 2 bytes, got %d", ErrInvalidPayload, len(payload))
		}
		return SetDigitalOut{Pin: payload[0], Value: payload[1]}, nil
	case KindSetPwmOut:
		if len(payload) < 3 {
			return nil, fmt.Errorf("%w: set_pwm_out needs 3 bytes, got %d", ErrInvalidPayload, len(payload))
		}
		return SetPwmOut{Pin: payload[0], Value: binary.BigEndian.Uint16(payload[1:3])}, nil
	case KindIdentifyResponse:
		if len(payload) < 2 {
			return nil, fmt.Errorf("%w: identify_response truncated", ErrInvalidPayload)
		}
		versionLen := int(payload[1])
		if len(payload) < 2+versionLen+1 {
			return nil, fmt.Errorf("%w: identify_response truncated version", ErrInvalidPayload)
		}
		version := payload[2 : 2+versionLen]
		nameLen := int(payload[2+versionLen])
		if len(payload) < 2+versionLen+1+nameLen {
			return nil, fmt.Errorf("%w: identify_response truncated mcu name", ErrInvalidPayload)
		}
		mcuName := payload[2+versionLen+1 : 2+versionLen+1+nameLen]
		return IdentifyResponse{
			IsConfigValid: payload[0] != 0,
			Version:       version,
			McuName:       mcuName,
		}, nil
	case KindGetConfigResponse:
		if len(payload) < 3 {
			return nil, fmt.Errorf("%w: get_config_response needs 3 bytes, got %d", ErrInvalidPayload, len(payload))
		}
		return GetConfigResponse{
			IsConfigValid: payload[0] != 0,
			NumSteppers:   payload[1],
			NumHeaters:    payload[2],
		}, nil
	case KindGetStatusResponse:
		if len(payload) < 5 {
			return nil, fmt.Errorf("%w: get_status_response needs 5 bytes, got %d", ErrInvalidPayload, len(payload))
		}
		return GetStatusResponse{
			ClockTicks:       binary.BigEndian.Uint32(payload[0:4]),
			EmergencyStopped: payload[4] != 0,
		}, nil
	case KindSetDigitalOutAck:
		return SetDigitalOutAck{}, nil
	case KindSetPwmOutAck:
		return SetPwmOutAck{}, nil
	default:
		return Unknown{ID: id, Payload: payload}, nil
	}
}
