package txn

import "github.com/ceyewan/shardis/xerrors"

var (
	// ErrTxDone 事务已经做出提交或回滚决定
	ErrTxDone = xerrors.WithCode(xerrors.New("txn: transaction already finished"), xerrors.CodeTxn)

	// ErrRolledBack 准备阶段失败，所有参与者已回滚
	ErrRolledBack = xerrors.WithCode(xerrors.New("txn: rolled back"), xerrors.CodeTxn)

	// ErrCommitFailed 提交阶段失败且没有参与者提交成功
	ErrCommitFailed = xerrors.WithCode(xerrors.New("txn: commit failed"), xerrors.CodeTxn)

	// ErrHeuristic 部分参与者提交成功、部分失败
	ErrHeuristic = xerrors.WithCode(xerrors.New("txn: heuristic mixed outcome"), xerrors.CodeTxn)
)
