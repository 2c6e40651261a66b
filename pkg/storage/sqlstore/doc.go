// Package sqlstore implements the search executors over database/sql for
// PostgreSQL and SQLite.
//
// Each executor renders a compiled predicate tree into one parameterized
// query: the organization predicate, the filter, the free-text match, a
// keyset resume condition and ORDER BY over the sort plan with LIMIT n+1.
// Custom field, taxonomy and relationship conditions become EXISTS
// subqueries so a many-valued match never duplicates a post. Virtual
// properties of a page are loaded afterwards with one batched query per
// address space.
//
// Tables:
//
//	posts(id, organization_id, title, slug, content, excerpt, status, post_type,
//	      author_id, published_at, created_at, updated_at)
//	media(id, organization_id, filename, original_name, mime_type, size,
//	      alt_text, caption, url, created_at, updated_at)
//	users(id, name, email, created_at, updated_at)
//	organization_members(organization_id, user_id, role)
//	taxonomies(id, organization_id, name, slug, description, created_at, updated_at)
//	terms(id, taxonomy_id, name, slug)
//	post_terms(post_id, term_id)
//	custom_fields(id, organization_id, slug, field_type)
//	post_field_values(post_id, field_id, value)
//	post_relationships(source_post_id, target_post_id, relationship_type, sort_order)
//
// SQLite stores timestamps as fixed-width UTC text so they compare lexically.
package sqlstore
