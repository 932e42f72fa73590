// Package testdb provides helpers for integration tests against a real
// PostgreSQL database.
//
// The helpers are compiled only with the integration build tag and skip the
// calling test when DATABASE_URL is unset. WithTx always rolls back, so
// tests sharing one database do not see each other's rows:
//
//	func TestSomething(t *testing.T) {
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.WithTx(t, db, func(ctx context.Context, tx *sql.Tx) {
//	        // ...
//	    })
//	}
package testdb
