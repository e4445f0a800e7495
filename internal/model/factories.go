package model

import (
	"encoding/json"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/chatproassist/voice-events-processor/pkg/utils"
)

// RandomJSONB generates random JSON data for testing.
func RandomJSONB() datatypes.JSON {
	jsonData := map[string]interface{}{
		"key": gofakeit.Word(),
		"num": gofakeit.Number(1, 100),
	}
	bytes, _ := json.Marshal(jsonData)
	return datatypes.JSON(bytes)
}

// init ensures gofakeit is seeded.
func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// NewCall creates a new Call instance with default fake data.
func NewCall(overrideDefaults ...*Call) *Call {
	start := utils.Now().Add(-time.Duration(gofakeit.Number(1, 30)) * time.Minute)
	base := &Call{
		ID:             uuid.NewString(),
		ProviderCallID: gofakeit.UUID(),
		PhoneNumber:    gofakeit.Phone(),
		CallerName:     gofakeit.Name(),
		Direction:      gofakeit.RandomString([]string{CallDirectionInbound, CallDirectionOutbound}),
		Status:         CallStatusInProgress,
		StartTime:      &start,
		AssistantID:    gofakeit.UUID(),
		OwnerID:        "owner_" + gofakeit.LetterN(10),
		CreatedAt:      start,
		UpdatedAt:      utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.ProviderCallID != "" {
			base.ProviderCallID = ovr.ProviderCallID
		}
		if ovr.PhoneNumber != "" {
			base.PhoneNumber = ovr.PhoneNumber
		}
		if ovr.CallerName != "" {
			base.CallerName = ovr.CallerName
		}
		if ovr.Direction != "" {
			base.Direction = ovr.Direction
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if ovr.StartTime != nil {
			base.StartTime = ovr.StartTime
		}
		if ovr.EndTime != nil {
			base.EndTime = ovr.EndTime
		}
		if ovr.Duration != 0 {
			base.Duration = ovr.Duration
		}
		if ovr.Transcript != "" {
			base.Transcript = ovr.Transcript
		}
		if ovr.RecordingURL != "" {
			base.RecordingURL = ovr.RecordingURL
		}
		if ovr.Cost != 0 {
			base.Cost = ovr.Cost
		}
		if ovr.AISummary != "" {
			base.AISummary = ovr.AISummary
		}
		if ovr.Sentiment != "" {
			base.Sentiment = ovr.Sentiment
		}
		if ovr.AssistantID != "" {
			base.AssistantID = ovr.AssistantID
		}
		if ovr.LeadID != nil {
			base.LeadID = ovr.LeadID
		}
		if ovr.OwnerID != "" {
			base.OwnerID = ovr.OwnerID
		}
		if ovr.Version != 0 {
			base.Version = ovr.Version
		}
	}
	return base
}

// NewLead creates a new Lead instance with default fake data.
func NewLead(overrideDefaults ...*Lead) *Lead {
	base := &Lead{
		ID:        uuid.NewString(),
		Name:      gofakeit.Name(),
		Phone:     gofakeit.Phone(),
		Email:     gofakeit.Email(),
		Source:    LeadSourcePhone,
		Status:    LeadStatusContacted,
		OwnerID:   "owner_" + gofakeit.LetterN(10),
		CreatedAt: utils.Now(),
		UpdatedAt: utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.Name != "" {
			base.Name = ovr.Name
		}
		if ovr.Phone != "" {
			base.Phone = ovr.Phone
		}
		if ovr.Email != "" {
			base.Email = ovr.Email
		}
		if ovr.Source != "" {
			base.Source = ovr.Source
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if ovr.OwnerID != "" {
			base.OwnerID = ovr.OwnerID
		}
	}
	return base
}

// NewCallEvent creates a new CallEvent instance with default fake data.
func NewCallEvent(overrideDefaults ...*CallEvent) *CallEvent {
	base := &CallEvent{
		CallID:    uuid.NewString(),
		EventType: string(EventTranscript),
		Data:      RandomJSONB(),
		OwnerID:   "owner_" + gofakeit.LetterN(10),
		CreatedAt: utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.CallID != "" {
			base.CallID = ovr.CallID
		}
		if ovr.EventType != "" {
			base.EventType = ovr.EventType
		}
		if ovr.Data != nil {
			base.Data = ovr.Data
		}
		if ovr.OwnerID != "" {
			base.OwnerID = ovr.OwnerID
		}
	}
	return base
}
