package mysql

const insertEntitySQL = `
INSERT INTO catalog_entities
  (entity_type, title, currency, price_minor, image_url, payload)
VALUES
  (?, ?, ?, ?, ?, ?)
`

const updateEntitySQL = `
UPDATE catalog_entities SET
  title       = ?,
  currency    = ?,
  price_minor = ?,
  image_url   = ?,
  payload     = ?,
  updated_at  = CURRENT_TIMESTAMP
WHERE id = ? AND entity_type = ?
`

const existsEntitySQL = `SELECT 1 FROM catalog_entities WHERE id = ? AND entity_type = ?`

const getEntitySQL = `
SELECT payload, created_at, updated_at
FROM catalog_entities
WHERE id = ? AND entity_type = ?
`
