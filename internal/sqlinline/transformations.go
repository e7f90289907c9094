package sqlinline

const QCreateSchema = `--sql 4b0e6c2a-1d7f-4e93-8a25-c6f3b9d10e48
create table if not exists integration_tokens (
    id uuid primary key,
    provider text not null unique,
    token text not null,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);

create table if not exists transformations (
    id uuid primary key,
    request_id text not null,
    kind text not null,
    provider text not null,
    outcome text not null,
    reason text not null default '',
    input_ref text not null default '',
    output_ref text not null default '',
    duration_ms bigint not null default 0,
    created_at timestamptz not null default now()
);

create index if not exists transformations_created_at_idx on transformations (created_at desc);
`

const QInsertTransformation = `--sql 9e3d71a0-5b2c-4f86-9d14-7a0b8e6c2f53
insert into transformations (
  id,
  request_id,
  kind,
  provider,
  outcome,
  reason,
  input_ref,
  output_ref,
  duration_ms,
  created_at
) values (
  $1::uuid,
  $2::text,
  $3::text,
  $4::text,
  $5::text,
  $6::text,
  $7::text,
  $8::text,
  $9::bigint,
  $10::timestamptz
);
`

const QListRecentTransformations = `--sql d1f4a8b3-6e07-4c2d-b95a-0c8e3f7a1b64
select
  id,
  request_id,
  kind,
  provider,
  outcome,
  reason,
  input_ref,
  output_ref,
  duration_ms,
  created_at
from transformations
order by created_at desc
limit $1::int;
`
