package http

import "net/http"

// Entries

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, "list_entries", err)
		return
	}
	entries, err := s.data.ListEntries(r.Context(), kind)
	if err != nil {
		writeError(w, r, "list_entries", err)
		return
	}
	NewJSONResponse().Data(entries).Write(w)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, "get_entry", err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "get_entry", err)
		return
	}
	e, err := s.data.GetEntry(r.Context(), kind, id)
	if err != nil {
		writeError(w, r, "get_entry", err)
		return
	}
	NewJSONResponse().Data(e).Write(w)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, "create_entry", err)
		return
	}
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "create_entry", err)
		return
	}
	created, err := s.data.CreateEntry(r.Context(), req.entry(kind, 0))
	if err != nil {
		writeError(w, r, "create_entry", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(created).Write(w)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, "update_entry", err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "update_entry", err)
		return
	}
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "update_entry", err)
		return
	}
	updated, err := s.data.UpdateEntry(r.Context(), req.entry(kind, id))
	if err != nil {
		writeError(w, r, "update_entry", err)
		return
	}
	NewJSONResponse().Data(updated).Write(w)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, "delete_entry", err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "delete_entry", err)
		return
	}
	if err := s.data.DeleteEntry(r.Context(), kind, id); err != nil {
		writeError(w, r, "delete_entry", err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// Wallets

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := s.data.ListWallets(r.Context())
	if err != nil {
		writeError(w, r, "list_wallets", err)
		return
	}
	NewJSONResponse().Data(wallets).Write(w)
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "create_wallet", err)
		return
	}
	created, err := s.data.CreateWallet(r.Context(), req.wallet(0))
	if err != nil {
		writeError(w, r, "create_wallet", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(created).Write(w)
}

func (s *Server) handleUpdateWallet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "update_wallet", err)
		return
	}
	var req walletRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "update_wallet", err)
		return
	}
	updated, err := s.data.UpdateWallet(r.Context(), req.wallet(id))
	if err != nil {
		writeError(w, r, "update_wallet", err)
		return
	}
	NewJSONResponse().Data(updated).Write(w)
}

func (s *Server) handleDeleteWallet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "delete_wallet", err)
		return
	}
	if err := s.data.DeleteWallet(r.Context(), id); err != nil {
		writeError(w, r, "delete_wallet", err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// Snapshots

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.data.ListSnapshots(r.Context())
	if err != nil {
		writeError(w, r, "list_snapshots", err)
		return
	}
	NewJSONResponse().Data(snapshots).Write(w)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "get_snapshot", err)
		return
	}
	sn, err := s.data.GetSnapshot(r.Context(), id)
	if err != nil {
		writeError(w, r, "get_snapshot", err)
		return
	}
	NewJSONResponse().Data(sn).Write(w)
}

func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "create_snapshot", err)
		return
	}
	created, err := s.data.CreateSnapshot(r.Context(), req.Date, req.lines())
	if err != nil {
		writeError(w, r, "create_snapshot", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(created).Write(w)
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "delete_snapshot", err)
		return
	}
	if err := s.data.DeleteSnapshot(r.Context(), id); err != nil {
		writeError(w, r, "delete_snapshot", err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// Categories

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.data.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, "list_categories", err)
		return
	}
	NewJSONResponse().Data(categories).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "create_category", err)
		return
	}
	created, err := s.data.CreateCategory(r.Context(), req.category(0))
	if err != nil {
		writeError(w, r, "create_category", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(created).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "update_category", err)
		return
	}
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "update_category", err)
		return
	}
	updated, err := s.data.UpdateCategory(r.Context(), req.category(id))
	if err != nil {
		writeError(w, r, "update_category", err)
		return
	}
	NewJSONResponse().Data(updated).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "delete_category", err)
		return
	}
	if err := s.data.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, r, "delete_category", err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleReset wipes the store. It is disabled unless the server was built
// with AllowReset and requires ?confirm=yes.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !s.allowReset {
		NotFoundError("no such endpoint").Write(w)
		return
	}
	if r.URL.Query().Get("confirm") != "yes" {
		writeError(w, r, "reset", badRequestf("reset requires confirm=yes"))
		return
	}
	if err := s.data.Reset(r.Context()); err != nil {
		writeError(w, r, "reset", err)
		return
	}
	NewJSONResponse().Data(map[string]bool{"reset": true}).Write(w)
}
