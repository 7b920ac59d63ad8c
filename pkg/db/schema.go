package db

import (
	"context"
	"fmt"
	"log/slog"
)

// Conversation state lives in static columns of the message partition, so a
// status change and the message that caused it commit in one conditional
// batch, and id assignment is serialized by Paxos on that single partition.
const conversationLogTable = `CREATE TABLE IF NOT EXISTS conversation_log (
	conversation_id bigint,
	status text static,
	assigned_operator text static,
	requester_account text static,
	guest_name text static,
	guest_email text static,
	guest_phone text static,
	guest_ip text static,
	created_at timestamp static,
	last_activity_at timestamp static,
	resolved_by text static,
	resolved_at timestamp static,
	last_message_id bigint static,
	version bigint static,
	id bigint,
	sender_role text,
	sender_identity text,
	body text,
	attachment_key text,
	attachment_type text,
	attachment_name text,
	attachment_size bigint,
	visibility text,
	sent_at timestamp,
	deleted boolean,
	PRIMARY KEY (conversation_id, id)
) WITH CLUSTERING ORDER BY (id ASC)`

const conversationCountersTable = `CREATE TABLE IF NOT EXISTS conversation_counters (
	conversation_id bigint,
	role text,
	unread_count counter,
	PRIMARY KEY (conversation_id, role)
)`

// Tables lists the keyspace tables in creation order.
var Tables = []string{"conversation_log", "conversation_counters"}

// CreateKeyspace must run on a session opened against the system keyspace.
func CreateKeyspace(ctx context.Context, sys *Session, keyspace string, replicationFactor int) error {
	stmt := fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : %d }`,
		keyspace, replicationFactor)
	return sys.Query(stmt).WithContext(ctx).Exec()
}

func Migrate(ctx context.Context, session *Session, logger *slog.Logger) error {
	for _, stmt := range []string{conversationLogTable, conversationCountersTable} {
		if err := session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	logger.Info("scylla schema ready", "tables", Tables)
	return nil
}

// Setup creates the keyspace through the system keyspace and then the tables
// in it. It is safe to run repeatedly.
func Setup(ctx context.Context, opts Options, replicationFactor int, logger *slog.Logger) error {
	sysOpts := opts
	sysOpts.Keyspace = "system"
	sys, err := NewSession(sysOpts, logger)
	if err != nil {
		return err
	}
	err = CreateKeyspace(ctx, sys, opts.Keyspace, replicationFactor)
	sys.Close()
	if err != nil {
		return fmt.Errorf("create keyspace %s: %w", opts.Keyspace, err)
	}

	session, err := NewSession(opts, logger)
	if err != nil {
		return err
	}
	defer session.Close()
	return Migrate(ctx, session, logger)
}
