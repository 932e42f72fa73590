// Package mocks provides Fn-field fakes of the interfaces consumed across
// package boundaries.
//
// Each mock has one function field per method. A nil field returns zero
// values (or the mock's default fields), so a test only sets what it needs:
//
//	svc := &mocks.MockTaskService{
//	    FindByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
//	        return nil, service.ErrTaskNotFound
//	    },
//	}
package mocks
