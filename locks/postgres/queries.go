package postgres

// SQL query constants for lock record operations

const (
	// _SQL_ACQUIRE_LOCK inserts a record, taking over rows that expired or already carry our token
	_SQL_ACQUIRE_LOCK = `
		INSERT INTO lock_keys (key_id, key_token, key_expiration)
		VALUES ($1, $2, now() + ($3::double precision * interval '1 second'))
		ON CONFLICT (key_id) DO UPDATE
		SET key_token = EXCLUDED.key_token, key_expiration = EXCLUDED.key_expiration
		WHERE lock_keys.key_expiration <= now() OR lock_keys.key_token = EXCLUDED.key_token`

	// _SQL_RELEASE_LOCK deletes a record owned by the token
	_SQL_RELEASE_LOCK = `
		DELETE FROM lock_keys
		WHERE key_id = $1 AND key_token = $2`

	// _SQL_REFRESH_LOCK extends a live record owned by the token
	_SQL_REFRESH_LOCK = `
		UPDATE lock_keys
		SET key_expiration = now() + ($3::double precision * interval '1 second')
		WHERE key_id = $1 AND key_token = $2 AND key_expiration > now()`

	// _SQL_EXISTS_LOCK checks for a live record owned by the token
	_SQL_EXISTS_LOCK = `
		SELECT EXISTS (
			SELECT 1 FROM lock_keys
			WHERE key_id = $1 AND key_token = $2 AND key_expiration > now()
		)`

	// _SQL_PRUNE_EXPIRED removes records past their expiration
	_SQL_PRUNE_EXPIRED = `
		DELETE FROM lock_keys
		WHERE key_expiration <= now()`
)
