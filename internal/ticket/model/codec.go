package model

import (
	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/json"
)

type ticketAlias Ticket

// MarshalJSON flattens Extensions into the top-level object.
func (t Ticket) MarshalJSON() ([]byte, error) {
	return marshalFlat(ticketAlias(t), t.Extensions)
}

// UnmarshalJSON collects unknown top-level keys into Extensions.
func (t *Ticket) UnmarshalJSON(data []byte) error {
	var a ticketAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	ext, err := collectExtensions(data)
	if err != nil {
		return err
	}
	*t = Ticket(a)
	t.Extensions = ext
	return nil
}

func marshalFlat(base any, ext Extensions) ([]byte, error) {
	b, err := json.Marshal(base)
	if err != nil || len(ext) == 0 {
		return b, err
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	for k, v := range ext {
		if IsReservedKey(k) {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		fields[k] = raw
	}
	return json.MarshalSorted(fields)
}

func collectExtensions(data []byte) (Extensions, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}

	var ext Extensions
	for k, raw := range all {
		if IsReservedKey(k) {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		if ext == nil {
			ext = make(Extensions)
		}
		ext[k] = v
	}
	return ext, nil
}
