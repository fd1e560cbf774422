package tokay

import "strconv"

// Capture records the span and severity of one slot within a
// sequence (spec.md §3 "Capture", §4.4 "Capture aggregation").
type Capture struct {
	Start    int
	End      int
	Value    Value // nil for severity 0/1, meaning "use the substring"
	Severity int   // 0 silent, 1 fallback-to-substring, 2 explicit emit, 3 push
	Alias    string
}

// aggregateCaptures implements spec.md §4.4's five-way aggregation
// policy over every capture a parselet call produced (those at
// indices ≥ the frame's capture-base). reader supplies the substring
// fallback (rule 4) by slicing [start,end).
func aggregateCaptures(caps []Capture, start, end int, reader Reader) (Value, error) {
	hasAlias := false
	for _, c := range caps {
		if c.Alias != "" {
			hasAlias = true
			break
		}
	}

	if hasAlias {
		d := NewDict()
		auto := 0
		for _, c := range caps {
			v := c.Value
			if v == nil {
				v = TheVoid
			}
			if c.Alias != "" {
				d.Set(c.Alias, v)
			} else if c.Severity >= 2 {
				d.Set(strconv.Itoa(auto), v)
				auto++
			}
		}
		return d, nil
	}

	hasPush := false
	for _, c := range caps {
		if c.Severity == 3 {
			hasPush = true
			break
		}
	}
	if hasPush {
		l := NewList()
		for _, c := range caps {
			if c.Severity >= 2 {
				v := c.Value
				if v == nil {
					v = TheVoid
				}
				l.Items = append(l.Items, v)
			}
		}
		return l, nil
	}

	strong := 0
	var strongValue Value
	for _, c := range caps {
		if c.Severity >= 2 {
			strong++
			strongValue = c.Value
		}
	}
	if strong == 1 {
		if strongValue == nil {
			strongValue = TheVoid
		}
		return strongValue, nil
	}

	if end > start {
		s, err := reader.Slice(start, end)
		if err != nil {
			return nil, err
		}
		return NewString(s), nil
	}

	return TheVoid, nil
}
