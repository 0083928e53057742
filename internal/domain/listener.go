package domain

// BalanceListener receives balance changes of the users it is subscribed to.
//
// Implementations are used as set keys, so they must be comparable; pointer
// receivers are the usual choice.
type BalanceListener interface {
	OnBalanceChanged(username string, balance int64, message string) error
}
