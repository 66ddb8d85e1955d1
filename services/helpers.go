package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	// Бюджет всей транзакции сверки и отдельный бюджет на захват соединения.
	// Превышение любого из них — жёсткий отказ без ретраев (ErrTransactionTimeout).
	txTimeout        = 15 * time.Second
	txAcquireTimeout = 5 * time.Second

	// Точечные апдейты участников идут пачками по 5: удалённая БД (пулер
	// облачного Postgres) плохо переносит длинные очереди запросов разом.
	participantChunkSize = 5
)

// TxBeginner покрывает *sql.DB; выделен в интерфейс ради тестов сервисов.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// beginReconcileTx открывает транзакцию с бюджетом на захват соединения и
// возвращает контекст с общим бюджетом на всю работу внутри неё.
func beginReconcileTx(ctx context.Context, db TxBeginner) (*sql.Tx, context.Context, context.CancelFunc, error) {
	acquireCtx, cancelAcquire := context.WithTimeout(ctx, txAcquireTimeout)
	tx, err := db.BeginTx(acquireCtx, nil)
	cancelAcquire()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, nil, ErrTransactionTimeout
		}
		return nil, nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx, cancel := context.WithTimeout(ctx, txTimeout)
	return tx, txCtx, cancel, nil
}

// mapTxError переводит обрыв по дедлайну в ErrTransactionTimeout, остальное
// отдаёт как есть — сообщение нижнего слоя сохраняется для диагностики.
func mapTxError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTransactionTimeout
	}
	return err
}

// chunk нарезает slice на пачки по size элементов; последняя может быть короче.
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// dedupIDs схлопывает дубликаты, сохраняя порядок первого вхождения.
func dedupIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	result := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
