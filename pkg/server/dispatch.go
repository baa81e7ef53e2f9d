package server

import (
	"encoding/json"
	"time"

	"github.com/bobboyms/corvusdb/pkg/errors"
	"github.com/bobboyms/corvusdb/pkg/index"
	"github.com/bobboyms/corvusdb/pkg/metrics"
	"github.com/bobboyms/corvusdb/pkg/protocol"
	"github.com/bobboyms/corvusdb/pkg/query"
	"github.com/bobboyms/corvusdb/pkg/storage"
	"github.com/bobboyms/corvusdb/pkg/txn"
)

// dispatch routes a validated request to its method handler and returns
// the response to write back. It never panics: every handler path returns
// either a result or a protocol.Error.
func (s *Server) dispatch(req *protocol.Request, cc *ClientConnection) protocol.Response {
	var result any
	var err error

	switch req.Method {
	case protocol.MethodPing:
		result = s.handlePing()
	case protocol.MethodCreate:
		result, err = s.handleCreate(req.Params, cc)
	case protocol.MethodRead:
		result, err = s.handleRead(req.Params, cc)
	case protocol.MethodUpdate:
		result, err = s.handleUpdate(req.Params, cc)
	case protocol.MethodDelete:
		result, err = s.handleDelete(req.Params, cc)
	case protocol.MethodQuery:
		result, err = s.handleQuery(req.Params)
	case protocol.MethodIndex:
		result, err = s.handleIndex(req.Params)
	case protocol.MethodTransaction:
		result, err = s.handleTransaction(req.Params, cc)
	case protocol.MethodStats:
		result = s.handleStats()
	default:
		err = &errors.InvalidMethodError{Method: req.Method}
	}

	if err != nil {
		return protocol.NewErrorResponse(req.ID, protocol.FromError(err))
	}
	return protocol.NewResultResponse(req.ID, result)
}

func decodeParams[T any](raw json.RawMessage, method string) (T, error) {
	var params T
	if len(raw) == 0 {
		return params, nil
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return params, &errors.InvalidParamsError{Method: method, Reason: err.Error()}
	}
	return params, nil
}

func (s *Server) handlePing() pingResult {
	return pingResult{
		Message:             "pong",
		Timestamp:           time.Now().UTC().Format(time.RFC3339Nano),
		ServerUptimeSeconds: time.Since(s.startedAt).Seconds(),
	}
}

func (s *Server) handleCreate(raw json.RawMessage, cc *ClientConnection) (createResult, error) {
	p, err := decodeParams[createParams](raw, protocol.MethodCreate)
	if err != nil {
		return createResult{}, err
	}

	if p.TransactionID != nil {
		id := p.ID
		if id == "" {
			id = storage.GenerateKey()
		}
		txID := txn.ID(*p.TransactionID)
		if err := s.txns.Write(txID, id, p.Data); err != nil {
			return createResult{}, err
		}
		cc.trackTx(txID)
		return createResult{ID: id, Version: 0, CreatedAt: time.Now().UTC().Format(time.RFC3339Nano), Document: p.Data}, nil
	}

	var doc *storage.Document
	if p.ID != "" {
		doc, err = s.engine.CreateWithID(p.ID, p.Data)
	} else {
		doc, err = s.engine.Create(p.Data)
	}
	if err != nil {
		return createResult{}, err
	}
	metrics.DocumentsTotal.Set(float64(s.engine.Count()))
	return createResult{
		ID: doc.ID, Version: doc.Version,
		CreatedAt: doc.CreatedAt.Format(time.RFC3339Nano), Document: doc.Payload,
	}, nil
}

func (s *Server) handleRead(raw json.RawMessage, cc *ClientConnection) (readResult, error) {
	p, err := decodeParams[readParams](raw, protocol.MethodRead)
	if err != nil {
		return readResult{}, err
	}

	if p.TransactionID != nil && p.ID != nil {
		txID := txn.ID(*p.TransactionID)
		payload, found, err := s.txns.Read(txID, *p.ID)
		if err != nil {
			return readResult{}, err
		}
		cc.trackTx(txID)
		if !found {
			return readResult{}, &errors.DocumentNotFoundError{ID: *p.ID}
		}
		return readResult{Document: payload}, nil
	}

	if p.ID != nil {
		doc, ok := s.engine.ReadByID(*p.ID)
		if !ok {
			return readResult{}, &errors.DocumentNotFoundError{ID: *p.ID}
		}
		return readResult{Document: doc.Payload}, nil
	}

	if len(p.IDs) > 0 {
		docs := s.engine.ReadByIDs(p.IDs)
		out := make([]any, len(docs))
		for i, d := range docs {
			out[i] = d.Payload
		}
		total := len(out)
		return readResult{Documents: out, TotalCount: &total}, nil
	}

	offset, limit := 0, 0
	if p.Offset != nil {
		offset = *p.Offset
	}
	if p.Limit != nil {
		limit = *p.Limit
	}
	docs := s.engine.ReadAll(offset, limit)
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i] = d.Payload
	}
	total := s.engine.Count()
	return readResult{Documents: out, TotalCount: &total}, nil
}

func (s *Server) handleUpdate(raw json.RawMessage, cc *ClientConnection) (updateResult, error) {
	p, err := decodeParams[updateParams](raw, protocol.MethodUpdate)
	if err != nil {
		return updateResult{}, err
	}
	if p.ID == "" {
		return updateResult{}, &errors.InvalidParamsError{Method: protocol.MethodUpdate, Reason: "id is required"}
	}

	if p.TransactionID != nil {
		txID := txn.ID(*p.TransactionID)
		if err := s.txns.Write(txID, p.ID, p.Data); err != nil {
			return updateResult{}, err
		}
		cc.trackTx(txID)
		return updateResult{ID: p.ID, UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano), Document: p.Data}, nil
	}

	var doc *storage.Document
	if p.ExpectedVersion != nil {
		doc, err = s.engine.UpdateWithVersion(p.ID, p.Data, *p.ExpectedVersion)
	} else {
		doc, err = s.engine.Update(p.ID, p.Data)
	}
	if err != nil {
		return updateResult{}, err
	}
	return updateResult{
		ID: doc.ID, Version: doc.Version,
		UpdatedAt: doc.UpdatedAt.Format(time.RFC3339Nano), Document: doc.Payload,
	}, nil
}

func (s *Server) handleDelete(raw json.RawMessage, cc *ClientConnection) (deleteResult, error) {
	p, err := decodeParams[deleteParams](raw, protocol.MethodDelete)
	if err != nil {
		return deleteResult{}, err
	}

	if p.TransactionID != nil && p.ID != nil {
		txID := txn.ID(*p.TransactionID)
		if err := s.txns.Delete(txID, *p.ID); err != nil {
			return deleteResult{}, err
		}
		cc.trackTx(txID)
		return deleteResult{DeletedCount: 1, DeletedIDs: []string{*p.ID}}, nil
	}

	if p.ID != nil {
		var deleted bool
		if p.ExpectedVersion != nil {
			deleted, err = s.engine.DeleteWithVersion(*p.ID, *p.ExpectedVersion)
		} else {
			deleted, err = s.engine.Delete(*p.ID)
		}
		if err != nil {
			return deleteResult{}, err
		}
		if !deleted {
			return deleteResult{DeletedCount: 0}, nil
		}
		metrics.DocumentsTotal.Set(float64(s.engine.Count()))
		return deleteResult{DeletedCount: 1, DeletedIDs: []string{*p.ID}}, nil
	}

	if len(p.IDs) > 0 {
		count, err := s.engine.DeleteBatch(p.IDs)
		if err != nil {
			return deleteResult{}, err
		}
		metrics.DocumentsTotal.Set(float64(s.engine.Count()))
		return deleteResult{DeletedCount: count, DeletedIDs: p.IDs}, nil
	}

	return deleteResult{}, &errors.InvalidParamsError{Method: protocol.MethodDelete, Reason: "id or ids is required"}
}

func (s *Server) handleQuery(raw json.RawMessage) (queryResult, error) {
	p, err := decodeParams[queryParams](raw, protocol.MethodQuery)
	if err != nil {
		return queryResult{}, err
	}

	q := query.New()
	for _, w := range p.WhereClauses {
		q.Where(w.Path, query.Operator(w.Operator), w.Value)
	}
	for _, sc := range p.SortClauses {
		q.OrderBy(sc.Path, sc.Descending)
	}
	if p.Projection != nil {
		if len(p.Projection.Include) > 0 {
			q.Include(p.Projection.Include...)
		} else if len(p.Projection.Exclude) > 0 {
			q.Exclude(p.Projection.Exclude...)
		}
	}
	if p.Offset != nil {
		q.Skip(*p.Offset)
	}
	if p.Limit != nil {
		q.Take(*p.Limit)
	}

	start := time.Now()
	result, err := query.Execute(q, s.engine.Indexes(), s.engine)
	elapsed := time.Since(start)
	if err != nil {
		return queryResult{}, err
	}

	docs := make([]any, len(result.Documents))
	for i, d := range result.Documents {
		docs[i] = d.Payload
	}
	return queryResult{
		Documents: docs, TotalCount: len(docs),
		ExecutionTimeMs: float64(elapsed.Microseconds()) / 1000.0,
		IndexUsed:       result.IndexUsed,
	}, nil
}

func (s *Server) handleIndex(raw json.RawMessage) (indexResult, error) {
	p, err := decodeParams[indexParams](raw, protocol.MethodIndex)
	if err != nil {
		return indexResult{}, err
	}

	switch p.Operation {
	case "create":
		kind := index.KindHash
		if p.IndexType == "ordered" {
			kind = index.KindOrdered
		}
		cfg := index.Config{Name: p.Name, Fields: p.Fields, Kind: kind, Unique: p.Unique}
		if err := s.engine.CreateIndex(cfg); err != nil {
			return indexResult{}, err
		}
		return indexResult{Name: p.Name, Message: "index created"}, nil

	case "drop":
		if err := s.engine.DropIndex(p.Name); err != nil {
			return indexResult{}, err
		}
		return indexResult{Name: p.Name, Message: "index dropped"}, nil

	case "list":
		configs := s.engine.Indexes().ListIndexes()
		out := make([]indexConfigWire, len(configs))
		for i, c := range configs {
			out[i] = indexConfigWire{Name: c.Name, Fields: c.Fields, Kind: string(c.Kind), Unique: c.Unique}
		}
		return indexResult{Message: "ok", Indexes: out}, nil

	case "stats":
		stats, err := s.engine.Indexes().Stats(p.Name)
		if err != nil {
			return indexResult{}, err
		}
		return indexResult{
			Name: p.Name, Message: "ok",
			Stats: &indexStatsWire{
				Name: stats.Name, TotalEntries: stats.TotalEntries,
				UniqueValues: stats.UniqueValues, EstimatedMemoryUsage: stats.EstimatedMemoryUsage,
			},
		}, nil

	default:
		return indexResult{}, &errors.InvalidParamsError{Method: protocol.MethodIndex, Reason: "unknown operation: " + p.Operation}
	}
}

func (s *Server) handleTransaction(raw json.RawMessage, cc *ClientConnection) (transactionResult, error) {
	p, err := decodeParams[transactionParams](raw, protocol.MethodTransaction)
	if err != nil {
		return transactionResult{}, err
	}

	switch p.Operation {
	case "begin":
		isolation, _ := txn.ParseIsolationLevel(p.IsolationLevel)
		timeout := time.Duration(0)
		if p.TimeoutSeconds != nil {
			timeout = time.Duration(*p.TimeoutSeconds) * time.Second
		}
		tx := s.txns.Begin(isolation, timeout)
		cc.trackTx(tx.ID)
		return transactionResult{TransactionID: uint64(tx.ID), Message: "transaction started", Status: tx.State.String()}, nil

	case "commit":
		if p.TransactionID == nil {
			return transactionResult{}, &errors.InvalidParamsError{Method: protocol.MethodTransaction, Reason: "transaction_id is required"}
		}
		txID := txn.ID(*p.TransactionID)
		if err := s.txns.Commit(txID); err != nil {
			metrics.TransactionsAborted.WithLabelValues("conflict").Inc()
			cc.untrackTx(txID)
			return transactionResult{}, err
		}
		metrics.TransactionsCommitted.Inc()
		cc.untrackTx(txID)
		return transactionResult{TransactionID: *p.TransactionID, Message: "transaction committed", Status: "committed"}, nil

	case "rollback":
		if p.TransactionID == nil {
			return transactionResult{}, &errors.InvalidParamsError{Method: protocol.MethodTransaction, Reason: "transaction_id is required"}
		}
		txID := txn.ID(*p.TransactionID)
		if err := s.txns.Rollback(txID); err != nil {
			return transactionResult{}, err
		}
		metrics.TransactionsAborted.WithLabelValues("rollback").Inc()
		cc.untrackTx(txID)
		return transactionResult{TransactionID: *p.TransactionID, Message: "transaction rolled back", Status: "aborted"}, nil

	default:
		return transactionResult{}, &errors.InvalidParamsError{Method: protocol.MethodTransaction, Reason: "unknown operation: " + p.Operation}
	}
}

func (s *Server) handleStats() statsResult {
	storeStats := s.engine.Stats()
	return statsResult{
		DocumentCount:       storeStats.DocumentCount,
		TotalSizeBytes:      storeStats.TotalSizeBytes,
		IndexCount:          storeStats.IndexCount,
		ActiveConnections:   s.pool.Count(),
		TotalConnections:    s.pool.TotalAccepted(),
		PeakConnections:     s.pool.PeakConnections(),
		ActiveTransactions:  s.txns.ActiveCount(),
		CurrentLSN:          s.engine.CurrentLSN(),
		ServerUptimeSeconds: time.Since(s.startedAt).Seconds(),
	}
}
