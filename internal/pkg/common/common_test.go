package common

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, mode string) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	prevMode := LogMode
	LogMode = mode
	t.Cleanup(func() {
		SetLogger(nil)
		LogMode = prevMode
	})
	return logs
}

func TestLogInfo_ConciseMode(t *testing.T) {
	logs := observe(t, "concise")

	LogInfo("相似度矩陣計算完成")
	LogInfo(MsgStageStarted, zap.String("stage", StageSimilarity))
	LogWarn("警告仍會輸出")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, MsgStageStarted, logs.All()[0].Message)
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)
}

func TestLogStage(t *testing.T) {
	logs := observe(t, "")

	LogStage(StageNormalize, time.Second, nil, zap.Int("vocabulary", 3))
	LogStage(StageAccumulate, time.Second, errors.New("boom"))

	require.Equal(t, 2, logs.Len())
	ok := logs.All()[0]
	assert.Equal(t, MsgStageFinished, ok.Message)
	assert.Equal(t, StageNormalize, ok.ContextMap()["stage"])

	failed := logs.All()[1]
	assert.Equal(t, zapcore.ErrorLevel, failed.Level)
	assert.Equal(t, "boom", failed.ContextMap()["error"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"invalid input", NewInvalidInputError(StageSimilarity, "need 2 recipes"), ErrCodeInvalidInput},
		{"lookup", NewLookupError(StageRanking, "ghee"), ErrCodeLookup},
		{"worker", NewWorkerFailure(StageAccumulate, 2, errors.New("disk full")), ErrCodeWorkerFailure},
		{"io", NewIOError(StageSnapshot, "open x", errors.New("denied")), ErrCodeIO},
		{"plain", errors.New("plain"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("run: %w", tt.err)
			assert.Equal(t, tt.code, ErrorCode(wrapped))
			assert.Equal(t, tt.code == ErrCodeInvalidInput, IsInvalidInput(wrapped))
			assert.Equal(t, tt.code == ErrCodeLookup, IsLookup(wrapped))
			assert.Equal(t, tt.code == ErrCodeWorkerFailure, IsWorkerFailure(wrapped))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, `ranking: ingredient "ghee" not in vocabulary`, NewLookupError(StageRanking, "ghee").Error())

	cause := errors.New("disk full")
	err := NewWorkerFailure(StageAccumulate, 2, cause)
	assert.Equal(t, "accumulate: worker for partition 2 failed: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestSubstitutionPair(t *testing.T) {
	p := NewSubstitutionPair("margarine", "butter")
	assert.Equal(t, SubstitutionPair{A: "butter", B: "margarine"}, p)
	assert.Equal(t, "butter <---> margarine", p.String())
	assert.Equal(t, p.Key(), SubstitutionPair{A: "margarine", B: "butter"}.Key())

	assert.False(t, SubstitutionPair{A: "salt", B: "salt"}.Valid())
	assert.False(t, SubstitutionPair{A: "salt"}.Valid())
}

func TestPairSet(t *testing.T) {
	s := NewPairSet([]SubstitutionPair{
		{A: "sugar", B: "honey"},
		{A: "butter", B: "margarine"},
		{A: "margarine", B: "butter"},
	})

	assert.Len(t, s, 2)
	assert.True(t, s.Has(SubstitutionPair{A: "honey", B: "sugar"}))
	assert.False(t, s.Has(SubstitutionPair{A: "honey", B: "salt"}))
	assert.Equal(t, []SubstitutionPair{
		{A: "butter", B: "margarine"},
		{A: "honey", B: "sugar"},
	}, s.Sorted())
}

func TestRepairJSONArray(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1},`, `[{"a":1}]`},
		{`{"a":1}]`, `[{"a":1}]`},
		{`[{"a":1},`, `[{"a":1}]`},
		{`[{"a":1}`, `[{"a":1}]`},
		{"  ", "[]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RepairJSONArray(tt.in))
	}
}

func TestParseJSONBytes(t *testing.T) {
	var v []int
	require.NoError(t, ParseJSONBytes([]byte("[1, 2]"), &v))
	assert.Equal(t, []int{1, 2}, v)

	assert.Error(t, ParseJSONBytes([]byte("[1] [2]"), &v))
}

func TestLatin1ToUTF8(t *testing.T) {
	got, err := Latin1ToUTF8([]byte{'c', 'r', 0xe8, 'm', 'e'})
	require.NoError(t, err)
	assert.Equal(t, "crème", got)

	got, err = Latin1ToUTF8([]byte("crème"))
	require.NoError(t, err)
	assert.Equal(t, "crème", got)
}

func TestShortRunID(t *testing.T) {
	assert.Equal(t, "123e4567", ShortRunID("123e4567-e89b-12d3-a456-426614174000"))
	assert.Equal(t, "abc", ShortRunID("abc"))
	assert.Len(t, GenerateUUID(), 36)
}
