package pubsubclient

import (
	"testing"
)

func TestValidateProjectID(t *testing.T) {
	tests := []struct {
		name      string
		projectID string
		wantErr   bool
	}{
		{
			name:      "valid project ID",
			projectID: "my-project-123",
			wantErr:   false,
		},
		{
			name:      "valid project ID with min length",
			projectID: "abc123",
			wantErr:   false,
		},
		{
			name:      "invalid - too short",
			projectID: "abc",
			wantErr:   true,
		},
		{
			name:      "invalid - starts with number",
			projectID: "1project",
			wantErr:   true,
		},
		{
			name:      "invalid - contains uppercase",
			projectID: "myProject",
			wantErr:   true,
		},
		{
			name:      "invalid - contains underscore",
			projectID: "my_project",
			wantErr:   true,
		},
		{
			name:      "invalid - ends with hyphen",
			projectID: "project-",
			wantErr:   true,
		},
		{
			name:      "invalid - empty",
			projectID: "",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateProjectID(tt.projectID)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateProjectID() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTopicName(t *testing.T) {
	tests := []struct {
		name      string
		topicName string
		wantErr   bool
	}{
		{
			name:      "valid topic name",
			topicName: "my-topic",
			wantErr:   false,
		},
		{
			name:      "valid with underscore",
			topicName: "my_topic",
			wantErr:   false,
		},
		{
			name:      "valid with period",
			topicName: "my.topic",
			wantErr:   false,
		},
		{
			name:      "valid with uppercase",
			topicName: "MyTopic",
			wantErr:   false,
		},
		{
			name:      "invalid - starts with number",
			topicName: "1topic",
			wantErr:   true,
		},
		{
			name:      "invalid - starts with hyphen",
			topicName: "-topic",
			wantErr:   true,
		},
		{
			name:      "invalid - too long",
			topicName: string(make([]byte, 256)),
			wantErr:   true,
		},
		{
			name:      "invalid - empty",
			topicName: "",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTopicName(tt.topicName)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateTopicName() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		opts map[string]any
	}{
		{
			name: "missing project ID",
			opts: map[string]any{},
		},
		{
			name: "invalid project ID",
			opts: map[string]any{"projectId": "INVALID_PROJECT"},
		},
		{
			name: "invalid topic name",
			opts: map[string]any{"projectId": "my-project-123", "topic": "123invalid"},
		},
		{
			name: "invalid publish timeout",
			opts: map[string]any{"projectId": "my-project-123", "publishTimeout": "0s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Errorf("New() expected error for %s", tt.name)
			}
		})
	}
}
