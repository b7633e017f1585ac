package sqlinline

const QIncrementUsageCounters = `--sql 39f6672f-8c99-4b30-92f0-b3c63d4deedc
insert into usage_counters (day, name, value)
select $1::date, t.name, t.value
from unnest($2::text[], $3::bigint[]) as t(name, value)
on conflict (day, name) do update set
    value = usage_counters.value + excluded.value;
`

const QSelectUsageSummary = `--sql ed741449-2b7e-44cc-b10d-50bc6f9b7fbf
select name, sum(value)::bigint as total
from usage_counters
where day >= current_date - ($1::int - 1)
group by name
order by name;
`
