package sqlinline

const QUpsertPrivilegedAccount = `--sql eb8fc70b-db38-4905-bdb3-42797e68c1fc
insert into privileged_accounts(email, note, granted_at)
values (lower($1::text), $2::text, now())
on conflict (email) do update
  set note = excluded.note,
      granted_at = now()
returning email, note, granted_at;
`

const QDeletePrivilegedAccount = `--sql 463f51da-2d4c-4534-961b-f2c90883c2c1
delete from privileged_accounts
where email = lower($1::text);
`

const QSelectPrivilegedAccount = `--sql c4cc721b-5dd6-4e2b-a889-6929ee40cc3e
select email, note, granted_at
from privileged_accounts
where email = lower($1::text)
limit 1;
`

const QListPrivilegedAccounts = `--sql 3d2b8e75-c890-495c-badb-f4662b889ec7
select email, note, granted_at
from privileged_accounts
order by granted_at desc;
`
