package invalidation

import "github.com/linksort/linksort-chat/internal/cache"

// Access classifies whether a tool changes server state.
type Access int

const (
	ReadOnly Access = iota
	Effectful
)

func (a Access) String() string {
	if a == Effectful {
		return "effectful"
	}
	return "read_only"
}

// Tool names the assistant can invoke.
const (
	ToolGetLinks      = "get_links"
	ToolGetLink       = "get_link"
	ToolSearchLinks   = "search_links"
	ToolGetFolderTree = "get_folder_tree"
	ToolGetUser       = "get_user"

	ToolCreateFolder = "create_folder"
	ToolRenameFolder = "rename_folder"
	ToolMoveFolder   = "move_folder"
	ToolDeleteFolder = "delete_folder"

	ToolSaveLink             = "save_link"
	ToolUpdateLink           = "update_link"
	ToolDeleteLink           = "delete_link"
	ToolAddLinkToFolder      = "add_link_to_folder"
	ToolRemoveLinkFromFolder = "remove_link_from_folder"
	ToolFavoriteLink         = "favorite_link"
	ToolAddTagToLink         = "add_tag_to_link"
)

// ToolSpec is the static classification of one tool.
type ToolSpec struct {
	Name       string
	Access     Access
	Partitions []cache.Partition
}

var (
	folders      = []cache.Partition{cache.PartitionUser}
	links        = []cache.Partition{cache.PartitionLinksList, cache.PartitionLinksDetail}
	foldersLinks = []cache.Partition{cache.PartitionUser, cache.PartitionLinksList, cache.PartitionLinksDetail}
)

// Catalog maps every known tool to the partitions it mutates. Adding a tool
// is one entry here.
type Catalog map[string]ToolSpec

func readOnly(name string) ToolSpec {
	return ToolSpec{Name: name, Access: ReadOnly}
}

func effectful(name string, partitions []cache.Partition) ToolSpec {
	return ToolSpec{Name: name, Access: Effectful, Partitions: partitions}
}

// DefaultCatalog returns the classification of the Linksort assistant tools.
func DefaultCatalog() Catalog {
	specs := []ToolSpec{
		readOnly(ToolGetLinks),
		readOnly(ToolGetLink),
		readOnly(ToolSearchLinks),
		readOnly(ToolGetFolderTree),
		readOnly(ToolGetUser),

		effectful(ToolCreateFolder, folders),
		effectful(ToolRenameFolder, folders),
		effectful(ToolMoveFolder, folders),
		// Links inside a deleted folder lose their folder.
		effectful(ToolDeleteFolder, foldersLinks),

		effectful(ToolSaveLink, links),
		effectful(ToolUpdateLink, links),
		effectful(ToolDeleteLink, links),
		effectful(ToolAddLinkToFolder, links),
		effectful(ToolRemoveLinkFromFolder, links),
		effectful(ToolFavoriteLink, links),
		effectful(ToolAddTagToLink, links),
	}

	c := make(Catalog, len(specs))
	for _, s := range specs {
		c[s.Name] = s
	}
	return c
}

// Lookup returns the classification of name.
func (c Catalog) Lookup(name string) (ToolSpec, bool) {
	s, ok := c[name]
	return s, ok
}
