package common

import (
	"errors"
	"fmt"
)

// 預定義錯誤代碼
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"  // 空語料、單筆語料、矩陣維度不符
	ErrCodeLookup        = "LOOKUP"         // 食材不在詞彙表中
	ErrCodeWorkerFailure = "WORKER_FAILURE" // 平行累加任務失敗
	ErrCodeIO            = "IO"             // 外部協作者讀寫失敗
)

// 管線階段名稱
const (
	StageVocabulary = "vocabulary"
	StageCorpus     = "corpus"
	StageSimilarity = "similarity"
	StageAccumulate = "accumulate"
	StageNormalize  = "normalize"
	StageRanking    = "ranking"
	StageEvaluate   = "evaluate"
	StageAnnotate   = "annotate"
	StageSnapshot   = "snapshot"
)

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Stage   string // 發生錯誤的管線階段
	Message string // 錯誤信息
	Err     error  // 原始錯誤
}

func (e *CustomError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Stage, e.Message)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap 返回原始錯誤
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewError 創建新的自定義錯誤
func NewError(code, stage, message string, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Stage:   stage,
		Message: message,
		Err:     err,
	}
}

// NewInvalidInputError 輸入不合法（例如語料少於兩筆）
func NewInvalidInputError(stage, message string) *CustomError {
	return NewError(ErrCodeInvalidInput, stage, message, nil)
}

// NewLookupError 食材不存在於詞彙表
func NewLookupError(stage, term string) *CustomError {
	return NewError(ErrCodeLookup, stage, fmt.Sprintf("ingredient %q not in vocabulary", term), nil)
}

// NewWorkerFailure 平行任務失敗，整個計算中止
func NewWorkerFailure(stage string, partition int, err error) *CustomError {
	return NewError(ErrCodeWorkerFailure, stage, fmt.Sprintf("worker for partition %d failed", partition), err)
}

// NewIOError 外部協作者讀寫失敗
func NewIOError(stage, message string, err error) *CustomError {
	return NewError(ErrCodeIO, stage, message, err)
}

// ErrorCode 取得錯誤代碼，非 CustomError 返回空字串
func ErrorCode(err error) string {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsInvalidInput 檢查是否為輸入錯誤
func IsInvalidInput(err error) bool {
	return ErrorCode(err) == ErrCodeInvalidInput
}

// IsLookup 檢查是否為查找錯誤
func IsLookup(err error) bool {
	return ErrorCode(err) == ErrCodeLookup
}

// IsWorkerFailure 檢查是否為平行任務失敗
func IsWorkerFailure(err error) bool {
	return ErrorCode(err) == ErrCodeWorkerFailure
}
