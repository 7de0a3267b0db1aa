package sqlinline

const QInsertStudioRun = `--sql 2aeed506-e8f9-4d5a-bcb2-9c90951be7ac
insert into studio_runs(session_id, run, user_id, user_email, persona_id, prompt, status, started_at, updated_at)
values ($1::text, $2::int, $3::text, $4::text, nullif($5::text, ''), $6::text, $7::text, now(), now())
on conflict (session_id, run) do update
  set status = excluded.status,
      updated_at = now();
`

const QUpdateStudioRunStatus = `--sql f273491a-189c-440d-8e71-e27a7ba2972d
update studio_runs
set status = $3::text,
    error = nullif($4::text, ''),
    finished_at = case when $3::text in ('complete', 'failed', 'discarded') then now() else finished_at end,
    updated_at = now()
where session_id = $1::text and run = $2::int and finished_at is null;
`

const QUpdateStudioRunSaved = `--sql 0e4f489a-8824-4764-972b-be2f8a4264c7
update studio_runs
set generation_id = nullif($3::text, ''),
    save_error = nullif($4::text, ''),
    updated_at = now()
where session_id = $1::text and run = $2::int;
`

const QCountStudioRunsSince = `--sql aad5b86c-9c93-4e6b-ab76-0d53b44b0be3
select count(*)
from studio_runs
where user_id = $1::text
  and status <> 'failed'
  and started_at >= $2::timestamptz;
`

const QListStudioRunsByUser = `--sql fc1f19aa-f63f-4540-a09c-df98f1332220
select session_id, run, persona_id, prompt, status, coalesce(error, ''), coalesce(generation_id, ''), started_at, finished_at
from studio_runs
where user_id = $1::text
order by started_at desc
limit $2::int;
`
