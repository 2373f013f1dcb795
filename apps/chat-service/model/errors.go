package model

import "errors"

// 错误分级：校验类错误在任何写入前同步返回，
// 写入阶段的失败一律归入ErrStorage，调用方不能假设哪一侧已提交
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrStorage      = errors.New("storage error")
)

// 业务细分错误，归属上面的某一类
var (
	ErrDuplicateName  = errors.New("name already exists")
	ErrInvalidName    = errors.New("name invalid")
	ErrOwnershipLimit = errors.New("every one can create only one group")
	ErrAlreadyMember  = errors.New("you already join this group")
	ErrNotMember      = errors.New("you are not in this group")
	ErrNotCreator     = errors.New("you are not creator of this group")
)

// Kind 返回业务错误所属的分类哨兵，包装过的错误同样可归类
func Kind(err error) error {
	switch {
	case errors.Is(err, ErrDuplicateName),
		errors.Is(err, ErrOwnershipLimit),
		errors.Is(err, ErrAlreadyMember),
		errors.Is(err, ErrNotMember),
		errors.Is(err, ErrConflict):
		return ErrConflict
	case errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrInvalidInput):
		return ErrInvalidInput
	case errors.Is(err, ErrNotCreator),
		errors.Is(err, ErrForbidden):
		return ErrForbidden
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrUnauthorized):
		return ErrUnauthorized
	default:
		return ErrStorage
	}
}
