package repo

import (
	"context"
	"sort"

	"github.com/caabsu/outlight-img2img/internal/infra"
	"github.com/caabsu/outlight-img2img/internal/sqlinline"
)

// StatsRepositoryPG implements domain.StatsRepository on the usage_counters
// table: one row per day and counter name, incremented in batches.
type StatsRepositoryPG struct {
	db infra.SQLExecutor
}

// NewStatsRepository constructs a new stats repository instance.
func NewStatsRepository(db infra.SQLExecutor) *StatsRepositoryPG {
	return &StatsRepositoryPG{db: db}
}

// IncrementCounters adds the given deltas to the day's counters in one
// statement. Counter names are sorted so the upsert order is stable.
func (r *StatsRepositoryPG) IncrementCounters(ctx context.Context, day string, counters map[string]int) error {
	if len(counters) == 0 {
		return nil
	}
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)
	values := make([]int64, 0, len(names))
	for _, name := range names {
		values = append(values, int64(counters[name]))
	}
	_, err := r.db.Exec(ctx, sqlinline.QIncrementUsageCounters, day, names, values)
	return err
}

// Summary sums each counter over the trailing window of days, today included.
func (r *StatsRepositoryPG) Summary(ctx context.Context, days int) (map[string]int, error) {
	if days <= 0 {
		days = 1
	}
	rows, err := r.db.Query(ctx, sqlinline.QSelectUsageSummary, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := make(map[string]int)
	for rows.Next() {
		var name string
		var total int64
		if err := rows.Scan(&name, &total); err != nil {
			return nil, err
		}
		summary[name] = int(total)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summary, nil
}
