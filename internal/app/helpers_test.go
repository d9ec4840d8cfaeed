package app_test

import "time"

func ptr[T any](v T) *T { return &v }

func pfloat(f float64) *float64 { return &f }

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
