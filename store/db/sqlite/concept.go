package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/conceptlens/store"
)

const conceptColumns = "id, uid, owner_id, title, title_key, category, summary, key_points, details, created_ts, updated_ts"

func (d *DB) CreateConcept(ctx context.Context, create *store.Concept) (*store.Concept, error) {
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	if create.UpdatedTs == 0 {
		create.UpdatedTs = create.CreatedTs
	}
	if create.KeyPoints == "" {
		create.KeyPoints = "[]"
	}

	fields := []string{"uid", "owner_id", "title", "title_key", "category", "summary", "key_points", "details", "created_ts", "updated_ts"}
	args := []any{create.UID, create.OwnerID, create.Title, create.TitleKey, create.Category, create.Summary, create.KeyPoints, create.Details, create.CreatedTs, create.UpdatedTs}
	stmt := "INSERT INTO concept (" + strings.Join(fields, ", ") + ") VALUES (" + placeholders(len(args)) + ") RETURNING id"
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create concept")
	}
	return create, nil
}

func (d *DB) ListConcepts(ctx context.Context, find *store.FindConcept) ([]*store.Concept, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.OwnerID; v != nil {
		where, args = append(where, "owner_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.TitleKey; v != nil {
		where, args = append(where, "title_key = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.TitleSearch; v != nil {
		where, args = append(where, "instr(title_key, "+placeholder(len(args)+1)+") > 0"), append(args, *v)
	}

	query := "SELECT " + conceptColumns + " FROM concept WHERE " + strings.Join(where, " AND ") + " ORDER BY id ASC"
	if find.Limit != nil {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list concepts")
	}
	defer rows.Close()

	list := []*store.Concept{}
	for rows.Next() {
		concept, err := scanConcept(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, concept)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpdateConcept(ctx context.Context, update *store.UpdateConcept) (*store.Concept, error) {
	set, args := []string{}, []any{}
	if v := update.Title; v != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.TitleKey; v != nil {
		set, args = append(set, "title_key = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Category; v != nil {
		set, args = append(set, "category = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Summary; v != nil {
		set, args = append(set, "summary = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.KeyPoints; v != nil {
		set, args = append(set, "key_points = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Details; v != nil {
		set, args = append(set, "details = "+placeholder(len(args)+1)), append(args, *v)
	}
	updatedTs := time.Now().Unix()
	if update.UpdatedTs != nil {
		updatedTs = *update.UpdatedTs
	}
	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, updatedTs)
	args = append(args, update.ID)

	stmt := "UPDATE concept SET " + strings.Join(set, ", ") + " WHERE id = " + placeholder(len(args)) + " RETURNING " + conceptColumns
	concept, err := scanConcept(d.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to update concept %d", update.ID)
	}
	return concept, nil
}

func (d *DB) DeleteConcept(ctx context.Context, delete *store.DeleteConcept) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM concept_relation WHERE concept_id = ? OR related_concept_id = ?", delete.ID, delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete concept relations")
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM concept_embedding WHERE concept_id = ?", delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete concept embeddings")
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM concept WHERE id = ?", delete.ID)
	if err != nil {
		return errors.Wrap(err, "failed to delete concept")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.Errorf("concept %d not found", delete.ID)
	}
	return tx.Commit()
}

// UpsertConceptEmbedding stores the vector as a JSON array.
func (d *DB) UpsertConceptEmbedding(ctx context.Context, upsert *store.ConceptEmbedding) (*store.ConceptEmbedding, error) {
	if len(upsert.Embedding) == 0 {
		return nil, errors.New("embedding is empty")
	}
	data, err := json.Marshal(upsert.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal embedding")
	}
	now := time.Now().Unix()

	stmt := `
		INSERT INTO concept_embedding (concept_id, embedding, model, created_ts, updated_ts)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (concept_id, model)
		DO UPDATE SET
			embedding = excluded.embedding,
			updated_ts = excluded.updated_ts
		RETURNING id, created_ts, updated_ts
	`
	err = d.db.QueryRowContext(ctx, stmt, upsert.ConceptID, string(data), upsert.Model, now, now).
		Scan(&upsert.ID, &upsert.CreatedTs, &upsert.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert concept embedding")
	}
	return upsert, nil
}

func (d *DB) ListConceptsWithEmbedding(ctx context.Context, find *store.FindConceptEmbedding) ([]*store.Concept, error) {
	query := `
		SELECT c.id, c.uid, c.owner_id, c.title, c.title_key, c.category, c.summary,
			c.key_points, c.details, c.created_ts, c.updated_ts, COALESCE(e.embedding, '')
		FROM concept c
		LEFT JOIN concept_embedding e ON e.concept_id = c.id AND e.model = ` + placeholder(1) + `
		WHERE c.owner_id = ` + placeholder(2) + `
		ORDER BY c.id ASC
	`
	rows, err := d.db.QueryContext(ctx, query, find.Model, find.OwnerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list concepts with embedding")
	}
	defer rows.Close()

	list := []*store.Concept{}
	for rows.Next() {
		var concept store.Concept
		if err := rows.Scan(
			&concept.ID,
			&concept.UID,
			&concept.OwnerID,
			&concept.Title,
			&concept.TitleKey,
			&concept.Category,
			&concept.Summary,
			&concept.KeyPoints,
			&concept.Details,
			&concept.CreatedTs,
			&concept.UpdatedTs,
			&concept.Embedding,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan concept")
		}
		list = append(list, &concept)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) FindConceptsWithoutEmbedding(ctx context.Context, find *store.FindConceptsWithoutEmbedding) ([]*store.Concept, error) {
	limit := find.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT c.id, c.uid, c.owner_id, c.title, c.title_key, c.category, c.summary,
			c.key_points, c.details, c.created_ts, c.updated_ts
		FROM concept c
		WHERE NOT EXISTS (
			SELECT 1 FROM concept_embedding e
			WHERE e.concept_id = c.id AND e.model = ` + placeholder(1) + `
		) AND c.id > ` + placeholder(2) + `
		ORDER BY c.id ASC
		LIMIT ` + placeholder(3)
	rows, err := d.db.QueryContext(ctx, query, find.Model, find.AfterID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find concepts without embedding")
	}
	defer rows.Close()

	list := []*store.Concept{}
	for rows.Next() {
		concept, err := scanConcept(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, concept)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpsertConceptRelation(ctx context.Context, upsert *store.ConceptRelation) (*store.ConceptRelation, error) {
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = time.Now().Unix()
	}
	stmt := `
		INSERT INTO concept_relation (concept_id, related_concept_id, type, reason, strength, created_ts)
		VALUES (` + placeholders(6) + `)
		ON CONFLICT (concept_id, related_concept_id)
		DO UPDATE SET
			type = excluded.type,
			reason = excluded.reason,
			strength = excluded.strength
		RETURNING created_ts
	`
	err := d.db.QueryRowContext(ctx, stmt,
		upsert.ConceptID,
		upsert.RelatedConceptID,
		upsert.Type,
		upsert.Reason,
		upsert.Strength,
		upsert.CreatedTs,
	).Scan(&upsert.CreatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert concept relation")
	}
	return upsert, nil
}

func (d *DB) ListConceptRelations(ctx context.Context, find *store.FindConceptRelation) ([]*store.ConceptRelation, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ConceptID; v != nil {
		where, args = append(where, "concept_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.RelatedConceptID; v != nil {
		where, args = append(where, "related_concept_id = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT concept_id, related_concept_id, type, reason, strength, created_ts
		FROM concept_relation
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY concept_id ASC, related_concept_id ASC
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list concept relations")
	}
	defer rows.Close()

	list := []*store.ConceptRelation{}
	for rows.Next() {
		var relation store.ConceptRelation
		if err := rows.Scan(
			&relation.ConceptID,
			&relation.RelatedConceptID,
			&relation.Type,
			&relation.Reason,
			&relation.Strength,
			&relation.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan concept relation")
		}
		list = append(list, &relation)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConcept(row rowScanner) (*store.Concept, error) {
	var concept store.Concept
	err := row.Scan(
		&concept.ID,
		&concept.UID,
		&concept.OwnerID,
		&concept.Title,
		&concept.TitleKey,
		&concept.Category,
		&concept.Summary,
		&concept.KeyPoints,
		&concept.Details,
		&concept.CreatedTs,
		&concept.UpdatedTs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan concept")
	}
	return &concept, nil
}
