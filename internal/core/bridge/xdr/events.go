package xdr

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ContractEventType 事件类型
type ContractEventType int32

const (
	ContractEventTypeSystem ContractEventType = iota
	ContractEventTypeContract
	ContractEventTypeDiagnostic
)

// ContractEvent 合约事件
type ContractEvent struct {
	ContractID *Hash
	Type       ContractEventType
	Topics     []ScVal
	Data       ScVal
}

// DiagnosticEvent 诊断事件（仅用于观测，不参与共识）
type DiagnosticEvent struct {
	InSuccessfulContractCall bool
	Event                    ContractEvent
}

func (e *ContractEvent) encode(w *Writer) error {
	if e.ContractID != nil {
		if err := w.hash(1, *e.ContractID); err != nil {
			return err
		}
	}
	w.varint(2, uint64(e.Type))
	for i := range e.Topics {
		if err := w.message(3, &e.Topics[i]); err != nil {
			return err
		}
	}
	return w.message(4, &e.Data)
}

func (e *ContractEvent) decode(r *Reader) error {
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if num != 3 {
			if err := r.once(num); err != nil {
				return err
			}
		}
		switch num {
		case 1:
			h, err := r.hash(typ)
			if err != nil {
				return err
			}
			e.ContractID = &h
		case 2:
			v, err := r.uint32(typ)
			if err != nil {
				return err
			}
			if v > uint32(ContractEventTypeDiagnostic) {
				return fmt.Errorf("invalid event type %d", v)
			}
			e.Type = ContractEventType(v)
		case 3:
			var topic ScVal
			if err := r.message(typ, &topic); err != nil {
				return err
			}
			e.Topics = append(e.Topics, topic)
		case 4:
			return r.message(typ, &e.Data)
		default:
			return errUnknownField
		}
		return nil
	})
	if err != nil {
		return err
	}
	return requireFields(r, 4)
}

func (d *DiagnosticEvent) encode(w *Writer) error {
	w.bool(1, d.InSuccessfulContractCall)
	return w.message(2, &d.Event)
}

func (d *DiagnosticEvent) decode(r *Reader) error {
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if err := r.once(num); err != nil {
			return err
		}
		var err error
		switch num {
		case 1:
			d.InSuccessfulContractCall, err = r.bool(typ)
		case 2:
			err = r.message(typ, &d.Event)
		default:
			return errUnknownField
		}
		return err
	})
	if err != nil {
		return err
	}
	return requireFields(r, 2)
}
