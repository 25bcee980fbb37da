package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type Message struct {
	MessageObjAddr      string `json:"message_obj_addr"`
	CreatorAddr         string `json:"creator_addr"`
	CreationTimestamp   int64  `json:"creation_timestamp"`
	LastUpdateTimestamp int64  `json:"last_update_timestamp"`
	LastUpdateEventIdx  int64  `json:"last_update_event_idx"`
	Content             string `json:"content"`
}

type MessageQuery struct {
	Page        int
	Limit       int
	SortBy      MessageSort
	Order       Order
	CreatorAddr string
}

type UserStat struct {
	UserAddr            string `json:"user_addr"`
	CreationTimestamp   int64  `json:"creation_timestamp"`
	LastUpdateTimestamp int64  `json:"last_update_timestamp"`
	CreatedMessages     int64  `json:"created_messages"`
	UpdatedMessages     int64  `json:"updated_messages"`
	S1Points            int64  `json:"s1_points"`
	TotalPoints         int64  `json:"total_points"`
}

type UserStatQuery struct {
	Page   int
	Limit  int
	SortBy UserStatSort
	Order  Order
}

const messageColumns = `message_obj_addr, creator_addr, creation_timestamp, last_update_timestamp, last_update_event_idx, content`

func buildMessageQuery(q MessageQuery) pagedSQL {
	page, limit, offset := normalizePage(q.Page, q.Limit)
	clauses := []string{"1 = 1"}
	args := make([]any, 0, 1)
	if addr := strings.TrimSpace(q.CreatorAddr); addr != "" {
		clauses = append(clauses, "creator_addr = ?")
		args = append(args, addr)
	}
	where := strings.Join(clauses, " AND ")

	return pagedSQL{
		list: fmt.Sprintf(
			`SELECT %s FROM messages WHERE %s ORDER BY %s %s, message_obj_addr ASC LIMIT ? OFFSET ?`,
			messageColumns, where, q.SortBy.Column(), q.Order.sql(),
		),
		count:     fmt.Sprintf(`SELECT COUNT(*) FROM messages WHERE %s`, where),
		listArgs:  append(append([]any{}, args...), limit, offset),
		countArgs: args,
		page:      page,
		limit:     limit,
	}
}

func (s *Store) ListMessages(ctx context.Context, q MessageQuery) (Page[Message], error) {
	built := buildMessageQuery(q)

	rows, err := s.db.QueryContext(ctx, built.list, built.listArgs...)
	if err != nil {
		return Page[Message]{}, queryErr("list messages", err)
	}
	defer rows.Close()

	items := make([]Message, 0, built.limit)
	for rows.Next() {
		var item Message
		if err := rows.Scan(
			&item.MessageObjAddr,
			&item.CreatorAddr,
			&item.CreationTimestamp,
			&item.LastUpdateTimestamp,
			&item.LastUpdateEventIdx,
			&item.Content,
		); err != nil {
			return Page[Message]{}, queryErr("scan message", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return Page[Message]{}, queryErr("list messages", err)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, built.count, built.countArgs...).Scan(&total); err != nil {
		return Page[Message]{}, queryErr("count messages", err)
	}
	return Page[Message]{Items: items, Total: total, Page: built.page, Limit: built.limit}, nil
}

func (s *Store) GetMessage(ctx context.Context, messageObjAddr string) (Message, error) {
	var item Message
	err := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE message_obj_addr = ?`,
		strings.TrimSpace(messageObjAddr),
	).Scan(
		&item.MessageObjAddr,
		&item.CreatorAddr,
		&item.CreationTimestamp,
		&item.LastUpdateTimestamp,
		&item.LastUpdateEventIdx,
		&item.Content,
	)
	if err != nil {
		return Message{}, queryErr("get message "+messageObjAddr, err)
	}
	return item, nil
}

func buildUserStatQuery(q UserStatQuery) pagedSQL {
	page, limit, offset := normalizePage(q.Page, q.Limit)
	return pagedSQL{
		list: fmt.Sprintf(`
			SELECT user_addr, creation_timestamp, last_update_timestamp, created_messages, updated_messages,
				s1_points, total_points
			FROM user_stats
			ORDER BY %s %s, user_addr ASC
			LIMIT ? OFFSET ?`,
			q.SortBy.Column(), q.Order.sql(),
		),
		count:    `SELECT COUNT(*) FROM user_stats`,
		listArgs: []any{limit, offset},
		page:     page,
		limit:    limit,
	}
}

func (s *Store) ListUserStats(ctx context.Context, q UserStatQuery) (Page[UserStat], error) {
	built := buildUserStatQuery(q)

	rows, err := s.db.QueryContext(ctx, built.list, built.listArgs...)
	if err != nil {
		return Page[UserStat]{}, queryErr("list user stats", err)
	}
	defer rows.Close()

	items := make([]UserStat, 0, built.limit)
	for rows.Next() {
		var item UserStat
		if err := rows.Scan(
			&item.UserAddr,
			&item.CreationTimestamp,
			&item.LastUpdateTimestamp,
			&item.CreatedMessages,
			&item.UpdatedMessages,
			&item.S1Points,
			&item.TotalPoints,
		); err != nil {
			return Page[UserStat]{}, queryErr("scan user stat", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return Page[UserStat]{}, queryErr("list user stats", err)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, built.count).Scan(&total); err != nil {
		return Page[UserStat]{}, queryErr("count user stats", err)
	}
	return Page[UserStat]{Items: items, Total: total, Page: built.page, Limit: built.limit}, nil
}

// GetLastSuccessVersion returns the highest ledger version any indexer
// processor has committed.
func (s *Store) GetLastSuccessVersion(ctx context.Context) (int64, error) {
	var version *int64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(last_success_version) FROM processor_status`).Scan(&version); err != nil {
		return 0, queryErr("get last success version", err)
	}
	if version == nil {
		return 0, queryErr("get last success version", sql.ErrNoRows)
	}
	return *version, nil
}
