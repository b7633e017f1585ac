package sqlinline

const QInsertPromptSet = `--sql 6d03b072-0f4e-4476-81f6-3c934695208e
insert into prompt_sets (id, product_id, name, prompts, created_at)
values ($1::uuid, $2::uuid, $3::text, $4::text[], now())
returning created_at;
`

const QSelectPromptSetByID = `--sql 017b2fa2-dc53-459b-87bd-cf9eb93ad61e
select id, product_id, name, prompts, created_at
from prompt_sets
where id = $1::uuid;
`

const QSelectPromptSetsByProduct = `--sql feb57354-83ab-4c83-95d8-90fce7e891d0
select id, product_id, name, prompts, created_at
from prompt_sets
where product_id = $1::uuid
order by created_at desc;
`

const QDeletePromptSet = `--sql ca6a7827-ac24-4285-b87d-a077a654e1e1
delete from prompt_sets
where id = $1::uuid;
`
