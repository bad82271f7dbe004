package store

import (
	"context"
	"fmt"

	"github.com/rbpanchal/medi-match/internal/memory"
)

// AppendChatTurn stores one conversation message.
func (s *Store) AppendChatTurn(ctx context.Context, turn memory.ChatTurn) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO chat_messages (user_id, role, content, created_at)
		VALUES ($1, $2, $3, $4)`,
		turn.UserID, turn.Role, turn.Content, turn.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append chat turn: %w", err)
	}
	return nil
}

// RecentTurns returns the last limit messages of a user, oldest first.
func (s *Store) RecentTurns(ctx context.Context, userID string, limit int) ([]memory.ChatTurn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT user_id, role, content, created_at FROM (
			SELECT user_id, role, content, created_at
			FROM chat_messages
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("get chat turns: %w", err)
	}
	defer rows.Close()

	turns := []memory.ChatTurn{}
	for rows.Next() {
		var t memory.ChatTurn
		if err := rows.Scan(&t.UserID, &t.Role, &t.Content, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan chat turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat turns: %w", err)
	}
	return turns, nil
}
