// SPDX-FileCopyrightText: Copyright 2024 Prasad Tengse
// SPDX-License-Identifier: MIT

package api

import (
	"strconv"
	"time"
)

// Timestamp represents a time that can be unmarshalled from a JSON string
// formatted as either an RFC3339 or Unix timestamp (seconds or milliseconds).
// GitHub API is not consistent about timestamp formats.
type Timestamp struct {
	time.Time
}

// Equal reports whether t and u are equal based on time.Equal.
func (t Timestamp) Equal(u Timestamp) bool {
	return t.Time.Equal(u.Time)
}

// UnmarshalJSON implements the [encoding/json.Unmarshaler] interface.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	str := string(data)
	i, err := strconv.ParseInt(str, 10, 64)
	if err == nil {
		t.Time = time.Unix(i, 0).In(time.UTC)
		// Values which are too far in the future are in milliseconds.
		if t.Time.Year() > 3000 {
			t.Time = time.UnixMilli(i).In(time.UTC)
		}
		return nil
	}

	v, err := time.Parse(`"`+time.RFC3339+`"`, str)
	if err != nil {
		return err //nolint:wrapcheck // returned as is by json package.
	}
	t.Time = v
	return nil
}
