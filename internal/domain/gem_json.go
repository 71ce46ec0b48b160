package domain

import "encoding/json"

type gemAlias Gem

type effectAlias Effect

var gemFields = map[string]struct{}{
	"name": {}, "stars": {}, "description": {}, "ranks": {}, "metadata": {},
}

var effectFields = map[string]struct{}{
	"type": {}, "description": {}, "conditions": {}, "value": {}, "duration": {}, "cooldown": {},
}

func (g Gem) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(gemAlias(g), g.Extra)
}

func (g *Gem) UnmarshalJSON(b []byte) error {
	var a gemAlias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	extra, err := extraFields(b, gemFields)
	if err != nil {
		return err
	}
	a.Extra = extra
	*g = Gem(a)
	return nil
}

func (e Effect) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(effectAlias(e), e.Extra)
}

func (e *Effect) UnmarshalJSON(b []byte) error {
	var a effectAlias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	extra, err := extraFields(b, effectFields)
	if err != nil {
		return err
	}
	a.Extra = extra
	*e = Effect(a)
	return nil
}

func extraFields(b []byte, known map[string]struct{}) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}
	for k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func marshalWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return base, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := fields[k]; !ok {
			fields[k] = raw
		}
	}
	return json.Marshal(fields)
}
