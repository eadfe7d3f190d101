package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"gopherai-workspace/internal/model"
	"gopherai-workspace/internal/notify"
)

const user = uint(1)

func TestRefreshWorkspacesSortsAndBindsSessions(t *testing.T) {
	f := newFixture(t,
		model.Workspace{ID: 2, Name: "b", UserID: user, SessionID: "sess-2"},
		model.Workspace{ID: 5, Name: "e", UserID: user},
		model.Workspace{ID: 3, Name: "other", UserID: 9},
	)
	f.backend.documents[2] = []model.Document{{ID: 7, Name: "a.pdf", WorkspaceID: 2}}

	list, err := f.svc.RefreshWorkspaces(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, uint(5), list[0].ID)
	require.Equal(t, "a.pdf", list[1].Documents[0].Name)
	require.Equal(t, "sess-2", f.store.Record(2).SessionID)
}

func TestCreateWorkspace(t *testing.T) {
	f := newFixture(t, model.Workspace{ID: 1, Name: "Research", UserID: user})
	ctx := context.Background()

	_, err := f.svc.CreateWorkspace(ctx, user, "  research ")
	require.ErrorIs(t, err, ErrDuplicateWorkspace)
	require.Zero(t, f.llm.count("start_session"))

	_, err = f.svc.CreateWorkspace(ctx, user, "   ")
	require.ErrorIs(t, err, ErrInvalidInput)

	ws, err := f.svc.CreateWorkspace(ctx, user, "Papers")
	require.NoError(t, err)
	require.Equal(t, "sess-new-1", ws.SessionID)
	require.Equal(t, ws.ID, f.svc.Selected(user))
	require.Equal(t, model.SessionRecord{SessionID: "sess-new-1", Type: model.SessionEmpty, Documents: []string{}}, f.store.Record(ws.ID))
}

func TestCreateWorkspaceSessionFailureCreatesNothing(t *testing.T) {
	f := newFixture(t)
	f.llm.fail["start_session"] = errUnavailable

	_, err := f.svc.CreateWorkspace(context.Background(), user, "Papers")
	require.ErrorIs(t, err, ErrRemote)
	require.Zero(t, f.backend.count("create_workspace"))

	notices := f.svc.Notifications(user)
	require.Len(t, notices, 1)
	require.Equal(t, notify.LevelError, notices[0].Level)
}

func TestUpdateWorkspaceRejectsTakenName(t *testing.T) {
	f := newFixture(t,
		model.Workspace{ID: 1, Name: "Alpha", UserID: user},
		model.Workspace{ID: 2, Name: "Beta", UserID: user},
	)
	ctx := context.Background()

	_, err := f.svc.UpdateWorkspace(ctx, user, model.Workspace{ID: 2, Name: "ALPHA"})
	require.ErrorIs(t, err, ErrDuplicateWorkspace)

	updated, err := f.svc.UpdateWorkspace(ctx, user, model.Workspace{ID: 2, Name: "Gamma"})
	require.NoError(t, err)
	require.Equal(t, "Gamma", updated.Name)
}

func TestDeleteSelectedWorkspaceSelectsNewest(t *testing.T) {
	f := newFixture(t,
		model.Workspace{ID: 1, Name: "a", UserID: user, CreatedAt: "2024-01-05T09:00:00"},
		model.Workspace{ID: 2, Name: "b", UserID: user, CreatedAt: "2024-01-07T09:00:00"},
		model.Workspace{ID: 3, Name: "c", UserID: user, CreatedAt: "2024-01-07T09:00:00"},
		model.Workspace{ID: 4, Name: "d", UserID: user, CreatedAt: "2024-01-01T09:00:00"},
	)
	ctx := context.Background()

	_, err := f.svc.SelectWorkspace(ctx, user, 1)
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteWorkspace(ctx, user, 4))
	require.Equal(t, uint(1), f.svc.Selected(user))

	require.NoError(t, f.svc.DeleteWorkspace(ctx, user, 1))
	require.Equal(t, uint(3), f.svc.Selected(user))

	require.NoError(t, f.svc.DeleteWorkspace(ctx, user, 3))
	require.Equal(t, uint(2), f.svc.Selected(user))

	require.NoError(t, f.svc.DeleteWorkspace(ctx, user, 2))
	require.Zero(t, f.svc.Selected(user))
}

func TestDeleteWorkspaceForgetsSessionState(t *testing.T) {
	f := newFixture(t, model.Workspace{ID: 1, Name: "a", UserID: user, SessionID: "s1"})
	ctx := context.Background()
	_, err := f.svc.RefreshWorkspaces(ctx, user)
	require.NoError(t, err)
	f.store.RecordDocument(ctx, 1, "a.pdf")

	require.NoError(t, f.svc.DeleteWorkspace(ctx, user, 1))
	require.Empty(t, f.store.Record(1).Documents)
	_, err = f.svc.View(ctx, user, 1)
	require.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestSelectWorkspaceReconstructsAndReconciles(t *testing.T) {
	f := newFixture(t, model.Workspace{ID: 1, Name: "a", UserID: user, SessionID: "s1"})
	f.backend.prompts = []model.PromptRecord{
		{PromptID: 1, WorkspaceID: 1, UserID: user, SessionID: "s1", PromptText: "q1", ResponseText: "see notes.pdf",
			Sources: []string{"Context 1: notes.pdf page 2"}},
		{PromptID: 2, WorkspaceID: 1, UserID: user, SessionID: "s1", PromptText: "q2", ResponseText: "done"},
	}
	f.llm.files["s1"] = []string{"notes.pdf", "https://example.com"}

	view, err := f.svc.SelectWorkspace(context.Background(), user, 1)
	require.NoError(t, err)
	require.True(t, view.Selected)
	require.Len(t, view.Messages, 4)
	require.Equal(t, "q1", view.Messages[0].Content)
	require.Equal(t, "notes.pdf", view.Messages[1].Sources[0].File)
	require.Equal(t, []string{"notes.pdf", "https://example.com"}, view.Session.Documents)
	require.Equal(t, model.SessionPDF, view.Session.Type)
}

func TestSelectWorkspaceHistoryFailureKeepsConversation(t *testing.T) {
	f := newFixture(t, model.Workspace{ID: 1, Name: "a", UserID: user, SessionID: "s1"})
	ctx := context.Background()
	f.store.RecordDocument(ctx, 1, "a.pdf")
	_, err := f.svc.SendMessage(ctx, user, 1, "hello")
	require.NoError(t, err)

	f.backend.fail["list_prompts"] = errUnavailable
	f.llm.fail["list_files"] = errUnavailable
	view, err := f.svc.SelectWorkspace(ctx, user, 1)
	require.NoError(t, err)
	require.Len(t, view.Messages, 2)
	require.Equal(t, []string{"a.pdf"}, view.Session.Documents)
}

func TestLoadPromptHistory(t *testing.T) {
	f := newFixture(t, model.Workspace{ID: 1, Name: "a", UserID: user, SessionID: "s2"})
	f.backend.prompts = []model.PromptRecord{
		{PromptID: 1, WorkspaceID: 1, UserID: user, SessionID: "s1", PromptText: "old", ResponseText: "from https://old.io"},
		{PromptID: 2, WorkspaceID: 1, UserID: user, SessionID: "s2", PromptText: "new", ResponseText: "ok"},
	}
	f.llm.fail["list_files"] = errUnavailable
	ctx := context.Background()

	view, err := f.svc.LoadPromptHistory(ctx, user, 1, "s1")
	require.NoError(t, err)
	require.Equal(t, "old", view.Messages[0].Content)
	require.Equal(t, model.SessionRecord{SessionID: "s1", Type: model.SessionURL, Documents: []string{"https://old.io"}}, view.Session)

	_, err = f.svc.LoadPromptHistory(ctx, user, 1, "missing")
	require.ErrorIs(t, err, ErrHistoryNotFound)
}

func TestScrapeURL(t *testing.T) {
	f := newFixture(t, model.Workspace{ID: 1, Name: "a", UserID: user, SessionID: "s1"})
	ctx := context.Background()

	_, err := f.svc.ScrapeURL(ctx, user, 1, "not a url")
	require.ErrorIs(t, err, ErrInvalidURL)
	require.Zero(t, f.backend.total())

	res, err := f.svc.ScrapeURL(ctx, user, 1, "example.com/page")
	require.NoError(t, err)
	require.Equal(t, 5, res.Chunks)
	require.Equal(t, model.SessionURL, f.store.Record(1).Type)

	_, err = f.svc.ScrapeURL(ctx, user, 1, "http://EXAMPLE.com/page")
	require.ErrorIs(t, err, ErrDuplicateURL)
	require.Equal(t, 1, f.llm.count("scrape_url"))
}

func TestScrapeURLWithoutSession(t *testing.T) {
	f := newFixture(t, model.Workspace{ID: 1, Name: "a", UserID: user})

	_, err := f.svc.ScrapeURL(context.Background(), user, 1, "https://example.com")
	require.ErrorIs(t, err, ErrNoSession)
	require.Zero(t, f.llm.total())
}

func TestUploadDocument(t *testing.T) {
	f := newFixture(t, model.Workspace{ID: 1, Name: "a", UserID: user, SessionID: "s1"})
	ctx := context.Background()

	_, err := f.svc.UploadDocument(ctx, user, 1, "notes.txt", []byte("hello"))
	require.ErrorIs(t, err, ErrUnsupportedFile)
	_, err = f.svc.UploadDocument(ctx, user, 1, "fake.pdf", []byte("hello"))
	require.ErrorIs(t, err, ErrUnsupportedFile)
	require.Zero(t, f.llm.total())

	doc, err := f.svc.UploadDocument(ctx, user, 1, "guide.pdf", minimalPDF())
	require.NoError(t, err)
	require.Equal(t, "guide.pdf", doc.Name)
	require.Equal(t, model.SessionRecord{SessionID: "s1", Type: model.SessionPDF, Documents: []string{"guide.pdf"}}, f.store.Record(1))

	view, err := f.svc.View(ctx, user, 1)
	require.NoError(t, err)
	require.Len(t, view.Workspace.Documents, 1)
}

func TestUploadDocumentLLMFailureSkipsMetadata(t *testing.T) {
	f := newFixture(t, model.Workspace{ID: 1, Name: "a", UserID: user, SessionID: "s1"})
	f.llm.fail["upload_document"] = errUnavailable

	_, err := f.svc.UploadDocument(context.Background(), user, 1, "guide.pdf", minimalPDF())
	require.ErrorIs(t, err, ErrRemote)
	require.Zero(t, f.backend.count("upload_document"))
	require.Empty(t, f.store.Record(1).Documents)
}

func TestDeleteDocument(t *testing.T) {
	f := newFixture(t, model.Workspace{ID: 1, Name: "a", UserID: user, SessionID: "s1"})
	f.backend.documents[1] = []model.Document{{ID: 7, Name: "a.pdf", WorkspaceID: 1}}
	ctx := context.Background()

	require.ErrorIs(t, f.svc.DeleteDocument(ctx, user, 8), ErrDocumentNotFound)
	require.NoError(t, f.svc.DeleteDocument(ctx, user, 7))

	view, err := f.svc.View(ctx, user, 1)
	require.NoError(t, err)
	require.Empty(t, view.Workspace.Documents)
}

func TestPromptHistoryAndUploadedFiles(t *testing.T) {
	f := newFixture(t, model.Workspace{ID: 1, Name: "a", UserID: user, SessionID: "s1"})
	f.llm.files["s1"] = []string{"a.pdf"}
	ctx := context.Background()

	records, err := f.svc.PromptHistory(ctx, user, 1)
	require.NoError(t, err)
	require.Empty(t, records)

	files, err := f.svc.ListUploadedFiles(ctx, user, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"a.pdf"}, files)
}

func TestWorkspacesOfOtherUsersAreHidden(t *testing.T) {
	f := newFixture(t, model.Workspace{ID: 1, Name: "a", UserID: 9, SessionID: "s1"})

	_, err := f.svc.View(context.Background(), user, 1)
	require.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestRefreshSession(t *testing.T) {
	f := newFixture(t, model.Workspace{ID: 1, Name: "a", UserID: user, SessionID: "s1"})
	ctx := context.Background()
	f.store.RecordDocument(ctx, 1, "stale.pdf")
	f.llm.files["s1"] = []string{"https://live.io"}

	view, err := f.svc.RefreshSession(ctx, user, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"https://live.io"}, view.Session.Documents)
	require.Equal(t, model.SessionURL, view.Session.Type)

	f.llm.fail["list_files"] = errUnavailable
	_, err = f.svc.RefreshSession(ctx, user, 1)
	require.ErrorIs(t, err, ErrRemote)
	require.Equal(t, []string{"https://live.io"}, f.store.Record(1).Documents)
}

func TestRejectedIntentsLeaveANotice(t *testing.T) {
	f := newFixture(t, model.Workspace{ID: 1, Name: "a", UserID: user, SessionID: "s1"})
	ctx := context.Background()
	_, err := f.svc.RefreshWorkspaces(ctx, user)
	require.NoError(t, err)
	f.svc.Notifications(user)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"blank message", func() error {
			_, err := f.svc.SendMessage(ctx, user, 1, "   ")
			return err
		}, ErrEmptyMessage},
		{"send to unknown workspace", func() error {
			_, err := f.svc.SendMessage(ctx, user, 42, "hi")
			return err
		}, ErrWorkspaceNotFound},
		{"blank rename", func() error {
			_, err := f.svc.UpdateWorkspace(ctx, user, model.Workspace{ID: 1, Name: " "})
			return err
		}, ErrInvalidInput},
		{"delete without id", func() error {
			return f.svc.DeleteWorkspace(ctx, user, 0)
		}, ErrInvalidInput},
		{"delete unknown workspace", func() error {
			return f.svc.DeleteWorkspace(ctx, user, 42)
		}, ErrWorkspaceNotFound},
		{"load blank session", func() error {
			_, err := f.svc.LoadPromptHistory(ctx, user, 1, "")
			return err
		}, ErrInvalidInput},
		{"delete unknown document", func() error {
			return f.svc.DeleteDocument(ctx, user, 999)
		}, ErrDocumentNotFound},
		{"view unknown workspace", func() error {
			_, err := f.svc.View(ctx, user, 42)
			return err
		}, ErrWorkspaceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.run(), tt.want)
			notices := f.svc.Notifications(user)
			require.Len(t, notices, 1)
			require.Equal(t, notify.LevelWarning, notices[0].Level)
		})
	}
}
