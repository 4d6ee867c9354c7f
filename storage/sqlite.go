// Copyright 2026 The recipehub Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alwitt/goutils"
	"github.com/alwitt/recipehub/common"
	"github.com/apex/log"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// sqliteRecipeStore SQLite backed RecipeStore
type sqliteRecipeStore struct {
	goutils.Component
	db *sql.DB
}

// GetSQLiteRecipeStore define a SQLite backed recipe store
func GetSQLiteRecipeStore(path string, busyTimeout time.Duration) (RecipeStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	logTags := log.Fields{"module": "storage", "component": "sqlite", "instance": path}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		log.WithError(err).WithFields(logTags).Error("Unable to open database")
		return nil, err
	}
	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	if busyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()))
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			log.WithError(err).WithFields(logTags).Errorf("Failed to apply '%s'", pragma)
			_ = db.Close()
			return nil, err
		}
	}

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(string(schema)); err != nil {
		log.WithError(err).WithFields(logTags).Error("Schema migration failed")
		_ = db.Close()
		return nil, err
	}

	log.WithFields(logTags).Info("Recipe store ready")
	return &sqliteRecipeStore{
		Component: goutils.Component{LogTags: logTags},
		db:        db,
	}, nil
}

// Save persist a new recipe
func (s *sqliteRecipeStore) Save(
	ctxt context.Context, owner string, recipe common.Recipe,
) (common.Recipe, error) {
	if recipe.CreatedAt.IsZero() {
		recipe.CreatedAt = time.Now()
	}
	recipe.CreatedAt = recipe.CreatedAt.UTC()
	recipe.Owner = owner

	tx, err := s.db.BeginTx(ctxt, nil)
	if err != nil {
		return common.Recipe{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(
		ctxt,
		`INSERT INTO recipes(owner, title, description, servings, total_time, difficulty, created_at)
		 VALUES(?,?,?,?,?,?,?)`,
		owner, recipe.Title, recipe.Description, recipe.Servings, recipe.TotalTime,
		recipe.Difficulty, recipe.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return common.Recipe{}, fmt.Errorf("insert recipe: %w", err)
	}
	recipeID, err := result.LastInsertId()
	if err != nil {
		return common.Recipe{}, err
	}

	for idx, ingredient := range recipe.Ingredients {
		if _, err := tx.ExecContext(
			ctxt,
			`INSERT INTO recipe_ingredients(recipe_id, position, name, amount, unit, note)
			 VALUES(?,?,?,?,?,?)`,
			recipeID, idx, ingredient.Name, ingredient.Amount, ingredient.Unit, ingredient.Note,
		); err != nil {
			return common.Recipe{}, fmt.Errorf("insert ingredient: %w", err)
		}
	}
	for idx, step := range recipe.Steps {
		if _, err := tx.ExecContext(
			ctxt,
			`INSERT INTO recipe_steps(recipe_id, position, step_number, instruction, timestamp, duration, details, tips)
			 VALUES(?,?,?,?,?,?,?,?)`,
			recipeID, idx, step.StepNumber, step.Instruction, step.Timestamp, step.Duration,
			step.Details, step.Tips,
		); err != nil {
			return common.Recipe{}, fmt.Errorf("insert step: %w", err)
		}
	}
	for idx, tip := range recipe.Tips {
		if _, err := tx.ExecContext(
			ctxt,
			`INSERT INTO recipe_tips(recipe_id, position, tip) VALUES(?,?,?)`, recipeID, idx, tip,
		); err != nil {
			return common.Recipe{}, fmt.Errorf("insert tip: %w", err)
		}
	}
	if recipe.Video != nil {
		var duration sql.NullInt64
		if recipe.Video.Duration != nil {
			duration = sql.NullInt64{Int64: int64(*recipe.Video.Duration), Valid: true}
		}
		if _, err := tx.ExecContext(
			ctxt,
			`INSERT INTO recipe_videos(recipe_id, video_id, title, duration, url) VALUES(?,?,?,?,?)`,
			recipeID, recipe.Video.VideoID, recipe.Video.Title, duration, recipe.Video.URL,
		); err != nil {
			return common.Recipe{}, fmt.Errorf("insert video: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return common.Recipe{}, err
	}
	recipe.ID = recipeID
	log.WithFields(s.GetLogTagsForContext(ctxt)).Debugf("Saved recipe %d for '%s'", recipeID, owner)
	return recipe, nil
}

// FindByOwner list the recipes of one owner
func (s *sqliteRecipeStore) FindByOwner(
	ctxt context.Context, owner string,
) ([]common.RecipeSummary, error) {
	rows, err := s.db.QueryContext(
		ctxt,
		`SELECT id, title, difficulty, total_time, created_at FROM recipes
		 WHERE owner = ? ORDER BY id DESC`,
		owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []common.RecipeSummary{}
	for rows.Next() {
		var summary common.RecipeSummary
		var createdAt string
		if err := rows.Scan(
			&summary.ID, &summary.Title, &summary.Difficulty, &summary.TotalTime, &createdAt,
		); err != nil {
			return nil, err
		}
		if summary.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// Get fetch one recipe of an owner
func (s *sqliteRecipeStore) Get(
	ctxt context.Context, owner string, recipeID int64,
) (common.Recipe, error) {
	recipe := common.Recipe{
		ID:          recipeID,
		Owner:       owner,
		Ingredients: []common.Ingredient{},
		Steps:       []common.RecipeStep{},
		Tips:        []string{},
	}
	var createdAt string
	err := s.db.QueryRowContext(
		ctxt,
		`SELECT title, description, servings, total_time, difficulty, created_at
		 FROM recipes WHERE id = ? AND owner = ?`,
		recipeID, owner,
	).Scan(
		&recipe.Title, &recipe.Description, &recipe.Servings, &recipe.TotalTime,
		&recipe.Difficulty, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return common.Recipe{}, ErrNotFound
	}
	if err != nil {
		return common.Recipe{}, err
	}
	if recipe.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return common.Recipe{}, err
	}

	if err := s.loadIngredients(ctxt, &recipe); err != nil {
		return common.Recipe{}, err
	}
	if err := s.loadSteps(ctxt, &recipe); err != nil {
		return common.Recipe{}, err
	}
	if err := s.loadTips(ctxt, &recipe); err != nil {
		return common.Recipe{}, err
	}
	if err := s.loadVideo(ctxt, &recipe); err != nil {
		return common.Recipe{}, err
	}
	return recipe, nil
}

func (s *sqliteRecipeStore) loadIngredients(ctxt context.Context, recipe *common.Recipe) error {
	rows, err := s.db.QueryContext(
		ctxt,
		`SELECT name, amount, unit, note FROM recipe_ingredients
		 WHERE recipe_id = ? ORDER BY position`,
		recipe.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var ingredient common.Ingredient
		if err := rows.Scan(
			&ingredient.Name, &ingredient.Amount, &ingredient.Unit, &ingredient.Note,
		); err != nil {
			return err
		}
		recipe.Ingredients = append(recipe.Ingredients, ingredient)
	}
	return rows.Err()
}

func (s *sqliteRecipeStore) loadSteps(ctxt context.Context, recipe *common.Recipe) error {
	rows, err := s.db.QueryContext(
		ctxt,
		`SELECT step_number, instruction, timestamp, duration, details, tips FROM recipe_steps
		 WHERE recipe_id = ? ORDER BY step_number, position`,
		recipe.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var step common.RecipeStep
		if err := rows.Scan(
			&step.StepNumber, &step.Instruction, &step.Timestamp, &step.Duration,
			&step.Details, &step.Tips,
		); err != nil {
			return err
		}
		recipe.Steps = append(recipe.Steps, step)
	}
	return rows.Err()
}

func (s *sqliteRecipeStore) loadTips(ctxt context.Context, recipe *common.Recipe) error {
	rows, err := s.db.QueryContext(
		ctxt, `SELECT tip FROM recipe_tips WHERE recipe_id = ? ORDER BY position`, recipe.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var tip string
		if err := rows.Scan(&tip); err != nil {
			return err
		}
		recipe.Tips = append(recipe.Tips, tip)
	}
	return rows.Err()
}

func (s *sqliteRecipeStore) loadVideo(ctxt context.Context, recipe *common.Recipe) error {
	var video common.VideoInfo
	var duration sql.NullInt64
	err := s.db.QueryRowContext(
		ctxt,
		`SELECT video_id, title, duration, url FROM recipe_videos WHERE recipe_id = ?`,
		recipe.ID,
	).Scan(&video.VideoID, &video.Title, &duration, &video.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if duration.Valid {
		value := int(duration.Int64)
		video.Duration = &value
	}
	recipe.Video = &video
	return nil
}

// Ready check the database connection
func (s *sqliteRecipeStore) Ready(ctxt context.Context) error {
	return s.db.PingContext(ctxt)
}

// Close close the database
func (s *sqliteRecipeStore) Close() error {
	log.WithFields(s.LogTags).Info("Closing recipe store")
	return s.db.Close()
}
