// Package http exposes the content query endpoint.
//
// Routes mount under /api/_content by default:
//   - Query: GET /query, GET /query/{qid} (descriptor in ?_params=), POST /query, POST /query/{qid}
//   - Navigation: GET /navigation, GET /navigation/{qid}, POST /navigation
//   - Head metadata: GET /head?_id=
//
// Responses carry X-Content-Query-Id (the computed descriptor hash) and
// X-Content-Version (the snapshot version the result was computed from).
// Host applications can register handlers on their own mux/router as needed.
package http
