package errors

import (
	"strconv"

	"github.com/go-kratos/kratos/v2/errors"
)

// Credit Service 错误定义
// 每个错误由 HTTP 状态码 + reason 唯一标识，errors.Is 按 code+reason 比较，
// 调用方应使用 reason 区分"积分不足"与其他内部错误。

// 错误 reason
const (
	ReasonInvalidAmount       = "INVALID_AMOUNT"
	ReasonInvalidArgument     = "INVALID_ARGUMENT"
	ReasonPricingNotFound     = "PRICING_NOT_FOUND"
	ReasonInsufficientCredits = "INSUFFICIENT_CREDITS"
	ReasonIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	ReasonLockFailed          = "LOCK_FAILED"
	ReasonStorageFailure      = "STORAGE_FAILURE"
)

// 错误元数据 key
const (
	MetadataRequired   = "required"
	MetadataAvailable  = "available"
	MetadataArtifactID = "artifact_id"
)

// HTTP 状态码
const (
	codeBadRequest      = 400
	codePaymentRequired = 402
	codeNotFound        = 404
	codeConflict        = 409
	codeInternal        = 500
	codeUnavailable     = 503
)

// 哨兵错误，仅用于 errors.Is 比较
var (
	ErrInvalidAmount       = errors.New(codeBadRequest, ReasonInvalidAmount, "credit amount must be a positive integer")
	ErrInvalidArgument     = errors.New(codeBadRequest, ReasonInvalidArgument, "invalid argument")
	ErrPricingNotFound     = errors.New(codeNotFound, ReasonPricingNotFound, "pricing not found")
	ErrInsufficientCredits = errors.New(codePaymentRequired, ReasonInsufficientCredits, "insufficient credits")
	ErrIdempotencyConflict = errors.New(codeConflict, ReasonIdempotencyConflict, "request id already used")
	ErrLockFailed          = errors.New(codeUnavailable, ReasonLockFailed, "failed to acquire balance lock")
	ErrStorageFailure      = errors.New(codeInternal, ReasonStorageFailure, "credit storage failure")
)

// InvalidAmount 金额非法
func InvalidAmount(amount int64) *errors.Error {
	return errors.Newf(codeBadRequest, ReasonInvalidAmount, "credit amount must be a positive integer, got %d", amount)
}

// InvalidArgument 参数非法
func InvalidArgument(format string, args ...interface{}) *errors.Error {
	return errors.Newf(codeBadRequest, ReasonInvalidArgument, format, args...)
}

// PricingNotFound 价格未配置
func PricingNotFound(actionType, platform string) *errors.Error {
	return errors.Newf(codeNotFound, ReasonPricingNotFound, "no pricing for action_type=%s platform=%s", actionType, platform)
}

// InsufficientCredits 积分不足，携带所需与可用额度
func InsufficientCredits(required, available int64) *errors.Error {
	return errors.Newf(codePaymentRequired, ReasonInsufficientCredits,
		"insufficient credits: required %d, available %d", required, available).
		WithMetadata(map[string]string{
			MetadataRequired:  strconv.FormatInt(required, 10),
			MetadataAvailable: strconv.FormatInt(available, 10),
		})
}

// InsufficientCreditsForArtifact 积分不足且制品已生成，调用方需据此把制品标记为未付费
func InsufficientCreditsForArtifact(required, available int64, artifactID string) *errors.Error {
	e := InsufficientCredits(required, available)
	if artifactID == "" {
		return e
	}
	md := e.GetMetadata()
	md[MetadataArtifactID] = artifactID
	return e.WithMetadata(md)
}

// IdempotencyConflict 同一 request_id 对应了不同的请求
func IdempotencyConflict(requestID string) *errors.Error {
	return errors.Newf(codeConflict, ReasonIdempotencyConflict, "request id %s was already used for a different mutation", requestID)
}

// LockFailed 获取组织锁失败
func LockFailed(cause error) *errors.Error {
	return errors.New(codeUnavailable, ReasonLockFailed, "failed to acquire balance lock").WithCause(cause)
}

// StorageFailure 存储层异常（事务已回滚）
func StorageFailure(cause error) *errors.Error {
	return errors.New(codeInternal, ReasonStorageFailure, "credit storage failure").WithCause(cause)
}

// IsInsufficientCredits 判断是否为积分不足
func IsInsufficientCredits(err error) bool {
	return errors.Reason(err) == ReasonInsufficientCredits
}

// IsInvalidAmount 判断是否为金额非法
func IsInvalidAmount(err error) bool {
	return errors.Reason(err) == ReasonInvalidAmount
}

// IsPricingNotFound 判断是否为价格未配置
func IsPricingNotFound(err error) bool {
	return errors.Reason(err) == ReasonPricingNotFound
}

// IsCallerError 调用方错误，不应重试
func IsCallerError(err error) bool {
	switch errors.Reason(err) {
	case ReasonInvalidAmount, ReasonInvalidArgument, ReasonPricingNotFound, ReasonIdempotencyConflict:
		return true
	}
	return false
}

// IsCreditError 是否已经是本服务定义的错误
func IsCreditError(err error) bool {
	switch errors.Reason(err) {
	case ReasonInvalidAmount, ReasonInvalidArgument, ReasonPricingNotFound, ReasonInsufficientCredits,
		ReasonIdempotencyConflict, ReasonLockFailed, ReasonStorageFailure:
		return true
	}
	return false
}

// InsufficientDetail 解析积分不足错误中的所需与可用额度
func InsufficientDetail(err error) (required, available int64, ok bool) {
	if !IsInsufficientCredits(err) {
		return 0, 0, false
	}
	md := errors.FromError(err).GetMetadata()
	required, errRequired := strconv.ParseInt(md[MetadataRequired], 10, 64)
	available, errAvailable := strconv.ParseInt(md[MetadataAvailable], 10, 64)
	if errRequired != nil || errAvailable != nil {
		return 0, 0, false
	}
	return required, available, true
}
