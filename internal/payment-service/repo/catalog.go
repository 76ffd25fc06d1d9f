package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// Catalog faz as leituras do catálogo de planos
type Catalog struct{ db *sqlx.DB }

func NewCatalog(db *sqlx.DB) *Catalog { return &Catalog{db: db} }

const planSelect = `
	SELECT p.id, p.nome, p.descricao, p.price_cents, p.billing_cycle, p.audience, p.ativo,
		ARRAY(SELECT c.categoria_id::text FROM benefit_plan_categorias c WHERE c.plan_id = p.id ORDER BY 1) AS categoria_ids
	FROM benefit_plans p`

// ListPlans devolve os planos ativos; audience vazio devolve todos os públicos
func (c *Catalog) ListPlans(ctx context.Context, audience string) ([]Plan, error) {
	var out []Plan
	err := c.db.SelectContext(ctx, &out,
		planSelect+` WHERE p.ativo AND ($1 = '' OR p.audience = $1) ORDER BY p.price_cents`, audience)
	return out, err
}

// GetPlan devolve o plano mesmo inativo (a checagem fica com quem chama)
func (c *Catalog) GetPlan(ctx context.Context, id string) (*Plan, error) {
	var p Plan
	err := c.db.GetContext(ctx, &p, planSelect+` WHERE p.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
