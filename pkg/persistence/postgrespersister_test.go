package persistence

import (
	"strings"
	"testing"

	"github.com/creaproof/provenance-registrar/pkg/model"
)

func TestWorksByCriteriaQueryNoFilters(t *testing.T) {
	queryString, params := worksByCriteriaQuery("work", &model.WorkCriteria{})
	if !strings.Contains(queryString, "FROM work WHERE 1=1 ORDER BY last_updated_timestamp DESC") {
		t.Errorf("Should have built an unfiltered query: %v", queryString)
	}
	if len(params) != 0 {
		t.Errorf("Should have had no params: %v", params)
	}
}

func TestWorksByCriteriaQueryState(t *testing.T) {
	queryString, params := worksByCriteriaQuery("work", &model.WorkCriteria{
		State:    model.WorkStateSubmitted,
		StateSet: true,
	})
	if !strings.Contains(queryString, "AND state=$1") {
		t.Errorf("Should have filtered by state: %v", queryString)
	}
	if len(params) != 1 || params[0] != int(model.WorkStateSubmitted) {
		t.Errorf("Should have bound the state param: %v", params)
	}
}

func TestWorksByCriteriaQueryOnlyVerified(t *testing.T) {
	queryString, params := worksByCriteriaQuery("work", &model.WorkCriteria{
		State:        model.WorkStateDraft,
		StateSet:     true,
		OnlyVerified: true,
	})
	if !strings.Contains(queryString, "AND state=$1") {
		t.Errorf("Should have filtered by state: %v", queryString)
	}
	// OnlyVerified wins over any explicit state filter
	if len(params) != 1 || params[0] != int(model.WorkStateVerified) {
		t.Errorf("Should have bound the verified state: %v", params)
	}
}

func TestWorksByCriteriaQueryCombined(t *testing.T) {
	queryString, params := worksByCriteriaQuery("work", &model.WorkCriteria{
		State:         model.WorkStateSubmitted,
		StateSet:      true,
		ReceiptFailed: true,
		CreatorID:     "creator1",
		TitleSearch:   "song",
		Offset:        10,
		Count:         5,
	})
	if !strings.Contains(queryString, "AND state=$1") {
		t.Errorf("Should have filtered by state: %v", queryString)
	}
	if !strings.Contains(queryString, "AND receipt_failed=TRUE") {
		t.Errorf("Should have filtered by the failed marker: %v", queryString)
	}
	if !strings.Contains(queryString, "AND creator_id=$2") {
		t.Errorf("Should have filtered by creator: %v", queryString)
	}
	if !strings.Contains(queryString, "AND title ILIKE $3") {
		t.Errorf("Should have filtered by title: %v", queryString)
	}
	if !strings.Contains(queryString, "LIMIT $4 OFFSET $5;") {
		t.Errorf("Should have paged the results: %v", queryString)
	}
	if len(params) != 5 {
		t.Errorf("Should have bound five params: %v", params)
	}
	if params[3] != 5 || params[4] != 10 {
		t.Errorf("Should have bound count then offset: %v", params)
	}
	if params[2] != "%song%" {
		t.Errorf("Should have wrapped the title search in wildcards: %v", params[2])
	}
}
