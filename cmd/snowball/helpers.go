package main

import (
	"errors"
	"time"

	"github.com/SnowballHQ/geo-optimizer-sub002/internal/orchestrator"
)

func asStepError(err error) (*orchestrator.StepError, bool) {
	var stepErr *orchestrator.StepError
	if errors.As(err, &stepErr) {
		return stepErr, true
	}
	return nil, false
}

func docString(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}

func docTime(doc map[string]any, key string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, docString(doc, key))
	return t, err == nil
}

func docFloat(doc map[string]any, path ...string) (float64, bool) {
	var cur any = doc
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return 0, false
		}
		cur = m[p]
	}
	f, ok := cur.(float64)
	return f, ok
}
