package thread

import "context"

// Outcome - чем закончилась оптимистичная мутация.
type Outcome int

const (
	// Reconciled - сервер ответил каноничными значениями, они записаны поверх локальных.
	Reconciled Outcome = iota
	// Kept - сервер ответил успехом без полезной нагрузки, оптимистичное состояние оставлено.
	Kept
	// SoftConflict - сервер уже в нужном состоянии, оптимистичное состояние оставлено.
	SoftConflict
	// RolledBack - запрос не удался, состояние возвращено к снимку.
	RolledBack
)

func (o Outcome) String() string {
	switch o {
	case Reconciled:
		return "reconciled"
	case Kept:
		return "kept"
	case SoftConflict:
		return "soft_conflict"
	case RolledBack:
		return "rolled_back"
	}
	return "unknown"
}

// Optimistic описывает одну мутацию: применить сразу, затем сверить с сервером или откатить.
// Снимок изменяемых полей снимается вызывающим до построения Optimistic и
// захватывается замыканием Rollback.
type Optimistic[R any] struct {
	Apply   func()
	Request func(ctx context.Context) (R, error)
	// Reconcile возвращает false, если в ответе нет пригодных значений.
	Reconcile func(R) bool
	Rollback  func()
	// IsSoftConflict может быть nil: тогда любая ошибка ведет к откату.
	IsSoftConflict func(error) bool
}

// RunOptimistic выполняет мутацию. Ошибка возвращается только при откате.
func RunOptimistic[R any](ctx context.Context, op Optimistic[R]) (Outcome, error) {
	op.Apply()

	res, err := op.Request(ctx)
	if err != nil {
		if op.IsSoftConflict != nil && op.IsSoftConflict(err) {
			return SoftConflict, nil
		}
		op.Rollback()
		return RolledBack, err
	}

	if op.Reconcile != nil && op.Reconcile(res) {
		return Reconciled, nil
	}
	return Kept, nil
}
