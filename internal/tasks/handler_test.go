package tasks

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestAssigneeFieldDecoding(t *testing.T) {
	cases := []struct {
		name string
		body string
		set  bool
		id   *int64
	}{
		{name: "absent", body: `{}`, set: false},
		{name: "null clears", body: `{"assigned_to":null}`, set: true},
		{name: "zero clears", body: `{"assigned_to":0}`, set: true},
		{name: "empty string clears", body: `{"assigned_to":""}`, set: true},
		{name: "string zero clears", body: `{"assigned_to":"0"}`, set: true},
		{name: "number sets", body: `{"assigned_to":7}`, set: true, id: ptr(7)},
		{name: "numeric string sets", body: `{"assigned_to":"7"}`, set: true, id: ptr(7)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var req updateTaskRequest
			require.NoError(t, json.Unmarshal([]byte(tc.body), &req))
			require.Equal(t, tc.set, req.AssignedTo.set)
			if tc.id == nil {
				require.Nil(t, req.AssignedTo.id)
			} else {
				require.NotNil(t, req.AssignedTo.id)
				require.Equal(t, *tc.id, *req.AssignedTo.id)
			}
		})
	}
}

func TestTitleLengthLimit(t *testing.T) {
	v := validator.New()

	ok := createTaskRequest{Title: strings.Repeat("a", 150)}
	require.NoError(t, v.Struct(ok))

	long := createTaskRequest{Title: strings.Repeat("a", 151)}
	require.Error(t, v.Struct(long))

	longPatch := strings.Repeat("a", 151)
	require.Error(t, v.Struct(updateTaskRequest{Title: &longPatch}))
}

func TestAssigneeFieldRejectsGarbage(t *testing.T) {
	for _, body := range []string{
		`{"assigned_to":"seven"}`,
		`{"assigned_to":-5}`,
		`{"assigned_to":"-5"}`,
	} {
		var req updateTaskRequest
		require.Error(t, json.Unmarshal([]byte(body), &req), body)
	}
}
