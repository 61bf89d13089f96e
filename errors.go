package main

import "fmt"

// ValidationError 入参校验失败, 直接拒绝, 不重试
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError 未知的 world/burg/region
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func notFoundErr(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// DimensionMismatchError 源图尺寸与声明的元数据不一致, 整批瓦片任务终止
type DimensionMismatchError struct {
	DeclaredW, DeclaredH int
	ActualW, ActualH     int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("svg dimensions %dx%d do not match declared metadata %dx%d",
		e.ActualW, e.ActualH, e.DeclaredW, e.DeclaredH)
}

// TransactionError 某个要素字段解析失败, 整层事务回滚
type TransactionError struct {
	Layer string
	Field string
	Err   error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("layer %s: field %s: %v", e.Layer, e.Field, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }
