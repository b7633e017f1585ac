package sqlinline

const QInsertProduct = `--sql 2ca6cc79-dc51-4329-9bea-4ecb977f190d
insert into products (id, name, reference_url, notes, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, $4::text, now(), now())
returning created_at, updated_at;
`

const QSelectProductByID = `--sql b06b359b-c15e-4655-8d19-0ad1cf4cac42
select id, name, reference_url, notes, created_at, updated_at
from products
where id = $1::uuid;
`

const QSelectProducts = `--sql eb021a07-b092-4218-9502-63c31680a53f
select id, name, reference_url, notes, created_at, updated_at
from products
order by created_at desc;
`

const QUpdateProduct = `--sql 98aac64f-18dc-443a-8b83-b409ea9424f0
update products
set name = $2::text,
    reference_url = $3::text,
    notes = $4::text,
    updated_at = now()
where id = $1::uuid
returning updated_at;
`

const QDeleteProduct = `--sql 6d6937c4-41e5-4fe0-b7b6-514e9ded00e2
delete from products
where id = $1::uuid;
`
